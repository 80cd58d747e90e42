package machine

// Control and status registers visible to supervisor mode.
//
// Only the handful the trap path needs is modeled; the layouts follow the
// RISC-V privileged spec so saved status words round-trip bit-for-bit.
type CSR struct {
	Sstatus  uint32 // privilege/interrupt status captured across traps
	Sepc     uint32 // pc of the trapped instruction (resume address)
	Scause   uint32 // trap cause code
	Stval    uint32 // faulting address or offending instruction
	Sscratch uint32 // supervisor scratch, holds the off-duty stack pointer
}

// sstatus bits.
const (
	SstatusSIE  uint32 = 1 << 1 // supervisor interrupt enable
	SstatusSPIE uint32 = 1 << 5 // SIE prior to the trap
	SstatusSPP  uint32 = 1 << 8 // privilege mode prior to the trap (0=U, 1=S)
)

// Exception cause codes (scause with the interrupt bit clear).
const (
	CauseInstrAccessFault   uint32 = 1
	CauseIllegalInstruction uint32 = 2
	CauseBreakpoint         uint32 = 3
	CauseLoadAccessFault    uint32 = 5
	CauseStoreAccessFault   uint32 = 7
	CauseEnvCallUser        uint32 = 8
)
