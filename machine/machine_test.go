package machine

import "testing"

// Test memory map: one executable user page, one writable user page, and one
// supervisor-only page right after it.
const (
	testCodeBase = 0x1000
	testDataBase = 0x2000
	testPrivBase = 0x3000
	testPageSize = 0x1000
)

// userMachine maps the test layout, loads prog at the code base, and drops
// the core to user mode there, the same way the kernel starts a task.
func userMachine(t *testing.T, prog []uint32) *Machine {
	t.Helper()
	mem := NewMemory()
	mem.Map("code", testCodeBase, testPageSize, PermR|PermX|PermU)
	mem.Map("data", testDataBase, testPageSize, PermR|PermW|PermU)
	mem.Map("priv", testPrivBase, testPageSize, PermR|PermW)
	for i, w := range prog {
		if err := mem.Store(testCodeBase+uint32(i*4), 4, w, false); err != nil {
			t.Fatalf("load word %d: %v", i, err)
		}
	}

	m := New(mem)
	m.CSR().Sepc = testCodeBase
	m.CSR().Sstatus = SstatusSPIE
	m.ReturnFromTrap()
	if m.Mode() != ModeUser {
		t.Fatalf("mode after return = %v, want user", m.Mode())
	}
	return m
}

// stepUntilTrap runs the machine until it traps, failing the test if it
// keeps running past limit instructions.
func stepUntilTrap(t *testing.T, m *Machine, limit int) {
	t.Helper()
	for i := 0; i < limit; i++ {
		if m.Step() {
			return
		}
	}
	t.Fatalf("no trap within %d steps", limit)
}

func TestArithmetic(t *testing.T) {
	m := userMachine(t, []uint32{
		0x00500093, // addi x1, x0, 5
		0x00700113, // addi x2, x0, 7
		0x002081b3, // add  x3, x1, x2
		0x40208233, // sub  x4, x1, x2
		0x00000073, // ecall
	})
	stepUntilTrap(t, m, 10)

	if got := m.Reg(3); got != 12 {
		t.Errorf("x3 = %d, want 12", got)
	}
	if got := m.Reg(4); got != 0xfffffffe {
		t.Errorf("x4 = %#x, want 0xfffffffe (5-7)", got)
	}
	if got := m.Cycles(); got != 5 {
		t.Errorf("cycles = %d, want 5", got)
	}
}

func TestX0Hardwired(t *testing.T) {
	m := userMachine(t, []uint32{
		0x00500013, // addi x0, x0, 5
		0x00000093, // addi x1, x0, 0
		0x00000073, // ecall
	})
	stepUntilTrap(t, m, 10)

	if got := m.Reg(0); got != 0 {
		t.Errorf("x0 = %d after write, want 0", got)
	}
	if got := m.Reg(1); got != 0 {
		t.Errorf("x1 = %d, want 0", got)
	}
}

func TestBranchAndJump(t *testing.T) {
	m := userMachine(t, []uint32{
		0x00500093, // addi x1, x0, 5
		0x00108463, // beq  x1, x1, +8   (skip next)
		0x06300113, // addi x2, x0, 99   (skipped)
		0x008000ef, // jal  x1, +8       (skip next, link in x1)
		0x06300193, // addi x3, x0, 99   (skipped)
		0x00000073, // ecall
	})
	stepUntilTrap(t, m, 10)

	if got := m.Reg(2); got != 0 {
		t.Errorf("x2 = %d, branch shadow executed", got)
	}
	if got := m.Reg(3); got != 0 {
		t.Errorf("x3 = %d, jump shadow executed", got)
	}
	// jal was the fourth word, so the link is its address + 4.
	if got, want := m.Reg(1), uint32(testCodeBase+4*4); got != want {
		t.Errorf("link = %#x, want %#x", got, want)
	}
}

func TestLoadStore(t *testing.T) {
	m := userMachine(t, []uint32{
		0x000022b7, // lui  x5, 0x2       (x5 = data base)
		0x08000093, // addi x1, x0, 128
		0x0012a023, // sw   x1, 0(x5)
		0x0002a303, // lw   x6, 0(x5)
		0x00028383, // lb   x7, 0(x5)     (sign extends 0x80)
		0x0002c403, // lbu  x8, 0(x5)
		0x00000073, // ecall
	})
	stepUntilTrap(t, m, 10)

	if got := m.Reg(6); got != 128 {
		t.Errorf("lw = %d, want 128", got)
	}
	if got := m.Reg(7); got != 0xffffff80 {
		t.Errorf("lb = %#x, want sign-extended 0xffffff80", got)
	}
	if got := m.Reg(8); got != 0x80 {
		t.Errorf("lbu = %#x, want 0x80", got)
	}
	if v, err := m.Mem().Load(testDataBase, 4, false); err != nil || v != 128 {
		t.Errorf("memory word = %d, %v; want 128, nil", v, err)
	}
}

func TestEcallTrap(t *testing.T) {
	m := userMachine(t, []uint32{
		0x00000013, // nop
		0x00000073, // ecall
	})
	stepUntilTrap(t, m, 10)

	csr := m.CSR()
	if m.Mode() != ModeSupervisor {
		t.Fatalf("mode = %v, want supervisor", m.Mode())
	}
	if csr.Scause != CauseEnvCallUser {
		t.Errorf("scause = %d, want %d", csr.Scause, CauseEnvCallUser)
	}
	if want := uint32(testCodeBase + 4); csr.Sepc != want {
		t.Errorf("sepc = %#x, want %#x (the ecall itself)", csr.Sepc, want)
	}
	if csr.Sstatus&SstatusSPP != 0 {
		t.Errorf("SPP set, want clear (trap came from user mode)")
	}
	if csr.Sstatus&SstatusSIE != 0 {
		t.Errorf("SIE set after trap, want disabled")
	}
}

func TestEbreakTrap(t *testing.T) {
	m := userMachine(t, []uint32{
		0x00100073, // ebreak
	})
	stepUntilTrap(t, m, 10)

	if got := m.CSR().Scause; got != CauseBreakpoint {
		t.Errorf("scause = %d, want %d", got, CauseBreakpoint)
	}
	if got := m.CSR().Stval; got != testCodeBase {
		t.Errorf("stval = %#x, want %#x", got, testCodeBase)
	}
}

func TestIllegalInstruction(t *testing.T) {
	m := userMachine(t, []uint32{
		0x00000000, // all zeros, not a valid encoding
	})
	stepUntilTrap(t, m, 10)

	if got := m.CSR().Scause; got != CauseIllegalInstruction {
		t.Errorf("scause = %d, want %d", got, CauseIllegalInstruction)
	}
	if got := m.CSR().Stval; got != 0 {
		t.Errorf("stval = %#x, want the offending word 0", got)
	}
	if got := m.CSR().Sepc; got != testCodeBase {
		t.Errorf("sepc = %#x, want %#x", got, testCodeBase)
	}
}

func TestStoreFaultSupervisorPage(t *testing.T) {
	m := userMachine(t, []uint32{
		0x00500093, // addi x1, x0, 5
		0x000032b7, // lui  x5, 0x3       (supervisor-only page)
		0x0012a023, // sw   x1, 0(x5)
	})
	stepUntilTrap(t, m, 10)

	if got := m.CSR().Scause; got != CauseStoreAccessFault {
		t.Errorf("scause = %d, want %d", got, CauseStoreAccessFault)
	}
	if got := m.CSR().Stval; got != testPrivBase {
		t.Errorf("stval = %#x, want %#x", got, testPrivBase)
	}
	// The page itself must be untouched.
	if v, _ := m.Mem().Load(testPrivBase, 4, false); v != 0 {
		t.Errorf("supervisor page written through a user fault: %#x", v)
	}
}

func TestLoadFaultUnmapped(t *testing.T) {
	m := userMachine(t, []uint32{
		0x000092b7, // lui x5, 0x9        (nothing mapped there)
		0x0002a303, // lw  x6, 0(x5)
	})
	stepUntilTrap(t, m, 10)

	if got := m.CSR().Scause; got != CauseLoadAccessFault {
		t.Errorf("scause = %d, want %d", got, CauseLoadAccessFault)
	}
	if got := m.CSR().Stval; got != 0x9000 {
		t.Errorf("stval = %#x, want 0x9000", got)
	}
}

func TestFetchFault(t *testing.T) {
	m := userMachine(t, []uint32{
		0x000022b7, // lui  x5, 0x2
		0x00028067, // jalr x0, 0(x5)     (jump into the data page)
	})
	stepUntilTrap(t, m, 10)

	if got := m.CSR().Scause; got != CauseInstrAccessFault {
		t.Errorf("scause = %d, want %d", got, CauseInstrAccessFault)
	}
	if got := m.CSR().Stval; got != testDataBase {
		t.Errorf("stval = %#x, want %#x", got, testDataBase)
	}
}

func TestReturnFromTrapRestoresInterruptState(t *testing.T) {
	m := userMachine(t, []uint32{
		0x00000073, // ecall
	})
	stepUntilTrap(t, m, 10)

	csr := m.CSR()
	csr.Sepc += 4
	m.ReturnFromTrap()

	if m.Mode() != ModeUser {
		t.Fatalf("mode = %v, want user (SPP was clear)", m.Mode())
	}
	if got, want := m.PC(), uint32(testCodeBase+4); got != want {
		t.Errorf("pc = %#x, want %#x", got, want)
	}
	// SPIE was set on entry (SIE was enabled before the first drop), so the
	// return re-enables SIE and re-arms SPIE.
	if csr.Sstatus&SstatusSIE == 0 {
		t.Errorf("SIE not restored from SPIE")
	}
	if csr.Sstatus&SstatusSPIE == 0 {
		t.Errorf("SPIE not re-armed")
	}
	if csr.Sstatus&SstatusSPP != 0 {
		t.Errorf("SPP not cleared")
	}
}

func TestStepOutsideUserModePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Step in supervisor mode did not panic")
		}
	}()
	m := New(NewMemory())
	m.Step()
}
