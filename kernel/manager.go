package kernel

const maxTasks = 16

// TaskManager owns the TCB arena and the current-task index.
//
// All mutation happens from the dispatcher's single thread of control
// (single core, no preemption), so the manager carries no locking. That is
// an invariant to preserve, not an omission: a port to concurrent execution
// must add its own serialization around the arena.
type TaskManager struct {
	tasks   [maxTasks]TaskControlBlock
	count   int
	current int
}

// NewTaskManager returns an empty arena; tasks are added during boot.
func NewTaskManager() *TaskManager {
	return &TaskManager{current: -1}
}

// Add creates a Ready TCB whose trap context lives at ctxAddr and returns
// its task id. It is only valid during initialization, before the first
// dispatch.
func (tm *TaskManager) Add(ctxAddr uint32) (int, bool) {
	if tm.count >= maxTasks {
		return 0, false
	}
	id := tm.count
	tm.count++
	tm.tasks[id] = TaskControlBlock{status: TaskReady, ctxAddr: ctxAddr}
	return id, true
}

// Count returns the number of created tasks.
func (tm *TaskManager) Count() int { return tm.count }

// Current returns the Running task's id, or -1 before the first dispatch.
func (tm *TaskManager) Current() int { return tm.current }

// Status returns the task's lifecycle state.
func (tm *TaskManager) Status(id int) TaskStatus {
	if id < 0 || id >= tm.count {
		return TaskUnused
	}
	return tm.tasks[id].status
}

// CtxAddr returns the task's trap context slot address.
func (tm *TaskManager) CtxAddr(id int) uint32 {
	return tm.tasks[id].ctxAddr
}

// SyscallCounts returns a copy of the task's invocation counters. Ids that
// were never invoked read zero; no id is ever absent.
func (tm *TaskManager) SyscallCounts(id int) [MaxSyscallNum]uint32 {
	return tm.tasks[id].syscalls
}

// SyscallCount returns one counter.
func (tm *TaskManager) SyscallCount(id int, sysno uint32) uint32 {
	if sysno >= MaxSyscallNum {
		return 0
	}
	return tm.tasks[id].syscalls[sysno]
}

// SchedCount returns how many times the task has been dispatched.
func (tm *TaskManager) SchedCount(id int) uint32 {
	return tm.tasks[id].slots
}

// ExitCode returns the code recorded by a normal exit.
func (tm *TaskManager) ExitCode(id int) int32 {
	return tm.tasks[id].exitCode
}

// RecordSyscall bumps the task's counter for sysno. Ids outside the counter
// space are ignored (the call itself still runs or fails on its own terms).
func (tm *TaskManager) RecordSyscall(id int, sysno uint32) {
	if sysno >= MaxSyscallNum {
		return
	}
	tm.tasks[id].syscalls[sysno]++
}

// Dispatch marks the task Running, makes it current, and charges one
// scheduling slot.
func (tm *TaskManager) Dispatch(id int) {
	tm.tasks[id].status = TaskRunning
	tm.tasks[id].slots++
	tm.current = id
}

// MarkReady moves a Running task back to Ready (voluntary yield).
func (tm *TaskManager) MarkReady(id int) {
	tm.tasks[id].status = TaskReady
}

// MarkExited retires the task. Its counters stay readable.
func (tm *TaskManager) MarkExited(id int, code int32) {
	tm.tasks[id].status = TaskExited
	tm.tasks[id].exitCode = code
}

// SelectNextReady picks the next Ready task round-robin, starting just
// after the current one so siblings get a turn before a yielder runs again.
func (tm *TaskManager) SelectNextReady() (int, bool) {
	if tm.count == 0 {
		return 0, false
	}
	start := tm.current + 1
	for i := 0; i < tm.count; i++ {
		id := (start + i) % tm.count
		if tm.tasks[id].status == TaskReady {
			return id, true
		}
	}
	return 0, false
}
