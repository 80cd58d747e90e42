package kernel

import "ember/machine"

// Trap context memory layout, in 32-bit words at the base slot of each
// task's kernel stack. The entry and exit protocols assume this exact order;
// changing it changes the trap ABI.
//
//	word 0..31   x0..x31 (x0 unused, x2 holds the user stack pointer)
//	word 32      sstatus
//	word 33      sepc
//	word 34      kernel stack pointer for the next entry
const (
	ctxWords = 35

	// CtxBytes is the size of the trap context slot.
	CtxBytes = ctxWords * 4

	ctxOffSstatus  = 32 * 4
	ctxOffSepc     = 33 * 4
	ctxOffKernelSP = 34 * 4
)

// TrapContext is the saved machine state of a trapped task: everything
// needed to resume it as if the trap had not occurred.
//
// It is a plain record. All mutation happens through the entry/exit
// protocols and the dispatcher; the slot in kernel-stack memory is the
// authoritative copy between traps.
type TrapContext struct {
	X        [32]uint32
	Sstatus  uint32
	Sepc     uint32
	KernelSP uint32
}

// NewTaskContext builds the synthetic context that starts a fresh task:
// restoring it drops to user mode at entry with the given user stack.
func NewTaskContext(entry, userSP, kernelSP uint32) TrapContext {
	var tc TrapContext
	tc.X[machine.RegSP] = userSP
	tc.Sstatus = machine.SstatusSPIE // SPP clear: return lands in user mode
	tc.Sepc = entry
	tc.KernelSP = kernelSP
	return tc
}

// LoadContext reads a trap context from its kernel-stack slot.
func LoadContext(mem *machine.Memory, addr uint32) TrapContext {
	var tc TrapContext
	for i := 0; i < 32; i++ {
		tc.X[i] = ctxLoad(mem, addr+uint32(i*4))
	}
	tc.Sstatus = ctxLoad(mem, addr+ctxOffSstatus)
	tc.Sepc = ctxLoad(mem, addr+ctxOffSepc)
	tc.KernelSP = ctxLoad(mem, addr+ctxOffKernelSP)
	return tc
}

// Store writes the context back to its kernel-stack slot.
func (tc *TrapContext) Store(mem *machine.Memory, addr uint32) {
	for i := 0; i < 32; i++ {
		ctxStore(mem, addr+uint32(i*4), tc.X[i])
	}
	ctxStore(mem, addr+ctxOffSstatus, tc.Sstatus)
	ctxStore(mem, addr+ctxOffSepc, tc.Sepc)
	ctxStore(mem, addr+ctxOffKernelSP, tc.KernelSP)
}

// Kernel stacks are mapped at init and never unmapped, so a fault while
// touching a context slot means kernel state is corrupt.
func ctxLoad(mem *machine.Memory, addr uint32) uint32 {
	v, err := mem.Load(addr, 4, false)
	if err != nil {
		panic("kernel: trap context slot unmapped: " + err.Error())
	}
	return v
}

func ctxStore(mem *machine.Memory, addr uint32, v uint32) {
	if err := mem.Store(addr, 4, v, false); err != nil {
		panic("kernel: trap context slot unmapped: " + err.Error())
	}
}
