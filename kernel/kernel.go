// Package kernel is the trap-handling and execution-accounting core of a
// single-core batch kernel. User tasks run on an emulated machine; every
// transfer into supervisor mode lands in the dispatcher here, which routes
// system calls, charges per-task invocation counters, and kills tasks that
// fault.
package kernel

import (
	"errors"
	"fmt"
	"io"

	"ember/hal"
	"ember/machine"
)

// ErrHalted reports that no Ready task remains. It is the only in-scope
// kernel termination: the batch is complete.
var ErrHalted = errors.New("kernel: all tasks completed")

// ErrUnexpectedTrap reports a trap cause this kernel does not support.
// It is fatal: a core assumption has been violated.
var ErrUnexpectedTrap = errors.New("kernel: unexpected trap cause")

// Config carries the kernel's external collaborators.
type Config struct {
	// Log receives kernel diagnostics (fault kills, exits). Optional.
	Log hal.Logger
	// Console receives user sys_write output. Optional.
	Console io.Writer
	// Now returns milliseconds since boot, for sys_get_time. Optional;
	// defaults to instruction-count time so runs stay deterministic.
	Now func() uint64
}

// Kernel drives one machine. Exactly one task is live in registers at any
// instant; every other task's state sits inert in its trap context slot.
type Kernel struct {
	m       *machine.Machine
	tm      *TaskManager
	log     hal.Logger
	console io.Writer
	now     func() uint64
	started bool
}

// New wires a kernel to a machine. Tasks are added with AddTask before
// Start.
func New(m *machine.Machine, cfg Config) *Kernel {
	k := &Kernel{
		m:       m,
		tm:      NewTaskManager(),
		log:     cfg.Log,
		console: cfg.Console,
		now:     cfg.Now,
	}
	if k.now == nil {
		k.now = func() uint64 { return m.Cycles() / 1000 }
	}
	return k
}

// Machine returns the underlying machine.
func (k *Kernel) Machine() *machine.Machine { return k.m }

// Tasks returns the task manager.
func (k *Kernel) Tasks() *TaskManager { return k.tm }

// AddTask registers a loaded task image. The caller (the loader) has
// already mapped the image and both stacks; kstackTop is the exclusive top
// of the task's kernel stack, whose base slot becomes the trap context.
func (k *Kernel) AddTask(entry, userSP, kstackTop uint32) (int, error) {
	if k.started {
		return 0, errors.New("kernel: AddTask after Start")
	}
	ctxAddr := kstackTop - CtxBytes
	id, ok := k.tm.Add(ctxAddr)
	if !ok {
		return 0, errors.New("kernel: task table full")
	}
	tc := NewTaskContext(entry, userSP, ctxAddr)
	tc.Store(k.m.Mem(), ctxAddr)
	return id, nil
}

// Start dispatches the first Ready task by restoring its synthetic context,
// exactly as if returning from a trap.
func (k *Kernel) Start() error {
	if k.started {
		return errors.New("kernel: already started")
	}
	if k.tm.Count() == 0 {
		return ErrHalted
	}
	k.started = true
	k.logf("kernel: %d task(s) loaded", k.tm.Count())
	return k.scheduleNext()
}

// Step executes one user instruction and, when it traps, runs the
// dispatcher to completion before returning. The returned error is either
// nil, ErrHalted, or fatal.
func (k *Kernel) Step() error {
	if !k.started {
		return errors.New("kernel: Step before Start")
	}
	if trapped := k.m.Step(); trapped {
		return k.handleTrap()
	}
	return nil
}

// StepN runs up to n instruction steps, stopping early on any error.
func (k *Kernel) StepN(n int) error {
	for i := 0; i < n; i++ {
		if err := k.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Run steps until the batch completes (ErrHalted) or a fatal error.
func (k *Kernel) Run() error {
	for {
		if err := k.Step(); err != nil {
			return err
		}
	}
}

// handleTrap is the dispatcher: save state, classify the cause once, and
// branch. Recoverable causes never propagate past here.
func (k *Kernel) handleTrap() error {
	ctx := EnterTrap(k.m)
	resume := k.m.CSR().Sepc
	cur := k.tm.Current()

	switch c := decodeCause(k.m.CSR()).(type) {
	case envCall:
		return k.handleSyscall(ctx)

	case illegalInstr:
		k.logf("trap: illegal instruction 0x%08x at pc 0x%08x, killing task %d",
			c.inst, resume, cur)
		return k.killCurrent()

	case memoryFault:
		k.logf("trap: %s fault at 0x%08x (pc 0x%08x), killing task %d",
			c.kind, c.addr, resume, cur)
		return k.killCurrent()

	case unexpected:
		return fmt.Errorf("%w: scause %d at pc 0x%08x", ErrUnexpectedTrap, c.code, resume)

	default:
		return fmt.Errorf("%w: unreachable", ErrUnexpectedTrap)
	}
}

// handleSyscall services a voluntary call. The invocation is charged to the
// current task before the call runs, exactly once per trap, regardless of
// the call's own outcome.
func (k *Kernel) handleSyscall(ctx uint32) error {
	mem := k.m.Mem()
	cur := k.tm.Current()

	tc := LoadContext(mem, ctx)
	tc.Sepc += 4 // resume after the ecall, not at it

	id := tc.X[machine.RegA7]
	a0 := tc.X[machine.RegA0]
	a1 := tc.X[machine.RegA1]
	a2 := tc.X[machine.RegA2]

	k.tm.RecordSyscall(cur, id)

	switch id {
	case SysExit:
		k.logf("kernel: task %d exited with code %d", cur, int32(a0))
		k.tm.MarkExited(cur, int32(a0))
		return k.scheduleNext()

	case SysYield:
		tc.X[machine.RegA0] = 0
		tc.Store(mem, ctx)
		k.tm.MarkReady(cur)
		return k.scheduleNext()
	}

	ret := int32(-1)
	if e, ok := sysent[id]; ok {
		ret = e.fn(k, a0, a1, a2)
	} else {
		k.logf("kernel: unsupported syscall %s from task %d", syscallName(id), cur)
	}
	tc.X[machine.RegA0] = uint32(ret)
	tc.Store(mem, ctx)
	ExitTrap(k.m, ctx)
	return nil
}

// killCurrent retires the faulting task and hands the core to the next
// Ready one.
func (k *Kernel) killCurrent() error {
	k.tm.MarkExited(k.tm.Current(), -1)
	return k.scheduleNext()
}

// scheduleNext asks the scheduling collaborator for the next Ready task and
// returns to user mode in its context. A task is charged one scheduling
// slot per dispatch.
func (k *Kernel) scheduleNext() error {
	id, ok := k.tm.SelectNextReady()
	if !ok {
		return ErrHalted
	}
	k.tm.Dispatch(id)
	ExitTrap(k.m, k.tm.CtxAddr(id))
	return nil
}

func (k *Kernel) logf(format string, args ...any) {
	if k.log == nil {
		return
	}
	k.log.WriteLineString(fmt.Sprintf(format, args...))
}
