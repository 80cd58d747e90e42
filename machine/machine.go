package machine

// Mode is the current privilege level.
type Mode uint8

const (
	ModeUser Mode = iota
	ModeSupervisor
)

// ABI register indices used by the kernel.
const (
	RegRA = 1
	RegSP = 2
	RegA0 = 10
	RegA1 = 11
	RegA2 = 12
	RegA7 = 17
)

// Machine is a single emulated RV32 core with two privilege modes.
//
// The core resets in supervisor mode; the kernel drops to user mode through
// the trap-return path, and Step raises user traps back to the caller.
type Machine struct {
	regs   [32]uint32
	pc     uint32
	mode   Mode
	csr    CSR
	mem    *Memory
	cycles uint64
}

// New returns a machine wired to the given memory map, in supervisor mode.
func New(mem *Memory) *Machine {
	return &Machine{mode: ModeSupervisor, mem: mem}
}

// Reg reads a general-purpose register. x0 always reads zero.
func (m *Machine) Reg(i int) uint32 {
	if i == 0 {
		return 0
	}
	return m.regs[i]
}

// SetReg writes a general-purpose register. Writes to x0 are discarded.
func (m *Machine) SetReg(i int, v uint32) {
	if i == 0 {
		return
	}
	m.regs[i] = v
}

// PC returns the program counter.
func (m *Machine) PC() uint32 { return m.pc }

// SetPC sets the program counter.
func (m *Machine) SetPC(v uint32) { m.pc = v }

// Mode returns the current privilege mode.
func (m *Machine) Mode() Mode { return m.mode }

// CSR exposes the control/status registers to supervisor-mode code.
func (m *Machine) CSR() *CSR { return &m.csr }

// Mem returns the memory map.
func (m *Machine) Mem() *Memory { return m.mem }

// Cycles returns the number of user instructions retired.
func (m *Machine) Cycles() uint64 { return m.cycles }

// Step executes one user-mode instruction.
//
// It returns true when the instruction trapped into supervisor mode: the
// cause is in scause/stval, sepc holds the trapped pc, and the mode has
// already switched. Further traps are architecturally disabled until the
// supervisor returns (no interrupt sources exist in this core, so nothing
// can nest regardless).
func (m *Machine) Step() bool {
	if m.mode != ModeUser {
		panic("machine: Step outside user mode")
	}
	inst, err := m.mem.Fetch(m.pc, true)
	if err != nil {
		m.trap(CauseInstrAccessFault, m.pc)
		return true
	}
	m.cycles++
	return m.exec(inst)
}

// trap performs the architectural transfer into supervisor mode.
func (m *Machine) trap(cause, tval uint32) {
	m.csr.Scause = cause
	m.csr.Stval = tval
	m.csr.Sepc = m.pc

	status := m.csr.Sstatus &^ (SstatusSPP | SstatusSPIE | SstatusSIE)
	if m.mode == ModeSupervisor {
		status |= SstatusSPP
	}
	if m.csr.Sstatus&SstatusSIE != 0 {
		status |= SstatusSPIE
	}
	m.csr.Sstatus = status
	m.mode = ModeSupervisor
}

// ReturnFromTrap implements sret: it atomically drops to the privilege mode
// recorded in sstatus.SPP and jumps to sepc.
func (m *Machine) ReturnFromTrap() {
	if m.csr.Sstatus&SstatusSPP != 0 {
		m.mode = ModeSupervisor
	} else {
		m.mode = ModeUser
	}
	status := m.csr.Sstatus &^ (SstatusSPP | SstatusSIE)
	if m.csr.Sstatus&SstatusSPIE != 0 {
		status |= SstatusSIE
	}
	status |= SstatusSPIE
	m.csr.Sstatus = status
	m.pc = m.csr.Sepc
}
