package kernel

import "ember/machine"

// EnterTrap is the trap entry protocol. The machine has already switched to
// supervisor mode with the cause latched in scause/stval and the resume
// address in sepc; EnterTrap captures the rest of the user state:
//
//  1. Exchange sp with sscratch. sscratch was left holding the context slot
//     address by the last exit, so sp now addresses the kernel stack and
//     sscratch holds the user sp, with no third register needed.
//  2. Save every general-purpose register except sp (held in sscratch) and
//     x0 into the slot.
//  3. Save sstatus and sepc, then pull the user sp out of sscratch into the
//     slot's x2 word.
//
// It returns the context address for the dispatcher. After it returns, no
// machine register still holds user state.
func EnterTrap(m *machine.Machine) uint32 {
	csr := m.CSR()
	mem := m.Mem()

	userSP := m.Reg(machine.RegSP)
	ctx := csr.Sscratch
	csr.Sscratch = userSP
	m.SetReg(machine.RegSP, ctx)

	for i := 1; i < 32; i++ {
		if i == machine.RegSP {
			continue
		}
		ctxStore(mem, ctx+uint32(i*4), m.Reg(i))
	}
	ctxStore(mem, ctx+ctxOffSstatus, csr.Sstatus)
	ctxStore(mem, ctx+ctxOffSepc, csr.Sepc)
	ctxStore(mem, ctx+uint32(machine.RegSP*4), csr.Sscratch)

	return ctx
}

// ExitTrap is the trap exit protocol: it restores the context at ctx,
// possibly a different task's than the one that trapped, and returns to
// user mode. It is also the path that starts a fresh task, whose synthetic
// context is restored exactly as if it had trapped before its first
// instruction.
func ExitTrap(m *machine.Machine, ctx uint32) {
	csr := m.CSR()
	mem := m.Mem()

	csr.Sstatus = ctxLoad(mem, ctx+ctxOffSstatus)
	csr.Sepc = ctxLoad(mem, ctx+ctxOffSepc)
	for i := 1; i < 32; i++ {
		if i == machine.RegSP {
			continue
		}
		m.SetReg(i, ctxLoad(mem, ctx+uint32(i*4)))
	}

	// Swap stacks back: sp takes the saved user sp, sscratch keeps the
	// context address for the next entry.
	m.SetReg(machine.RegSP, ctxLoad(mem, ctx+uint32(machine.RegSP*4)))
	csr.Sscratch = ctx

	m.ReturnFromTrap()
}

// trapCause is the decoded trap cause. The dispatcher switches on it once;
// nothing else in the kernel looks at raw cause codes.
type trapCause interface{ isTrapCause() }

// envCall is a voluntary system call.
type envCall struct{}

// illegalInstr covers illegal and privileged-in-user-mode instructions.
type illegalInstr struct {
	inst uint32
}

// memoryFault is a disallowed or unmapped memory access.
type memoryFault struct {
	kind machine.AccessKind
	addr uint32
}

// unexpected is any cause this kernel does not support; it is fatal.
type unexpected struct {
	code uint32
}

func (envCall) isTrapCause()      {}
func (illegalInstr) isTrapCause() {}
func (memoryFault) isTrapCause()  {}
func (unexpected) isTrapCause()   {}

// decodeCause reads the hardware cause registers into a trapCause.
func decodeCause(csr *machine.CSR) trapCause {
	switch csr.Scause {
	case machine.CauseEnvCallUser:
		return envCall{}
	case machine.CauseIllegalInstruction:
		return illegalInstr{inst: csr.Stval}
	case machine.CauseInstrAccessFault:
		return memoryFault{kind: machine.AccessFetch, addr: csr.Stval}
	case machine.CauseLoadAccessFault:
		return memoryFault{kind: machine.AccessLoad, addr: csr.Stval}
	case machine.CauseStoreAccessFault:
		return memoryFault{kind: machine.AccessStore, addr: csr.Stval}
	default:
		return unexpected{code: csr.Scause}
	}
}
