package kernel

// TaskStatus is a task's lifecycle state.
type TaskStatus uint8

const (
	TaskUnused TaskStatus = iota
	TaskReady
	TaskRunning
	TaskExited
)

func (s TaskStatus) String() string {
	switch s {
	case TaskUnused:
		return "unused"
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskExited:
		return "exited"
	default:
		return "unknown"
	}
}

// MaxSyscallNum bounds the syscall id space the per-task counters cover.
const MaxSyscallNum = 500

// TaskControlBlock is one task's kernel-visible state. TCBs live in the
// task manager's arena for the kernel's whole lifetime; a finished task is
// only ever marked exited, never destroyed.
type TaskControlBlock struct {
	status   TaskStatus
	ctxAddr  uint32 // trap context slot at the base of the kernel stack
	syscalls [MaxSyscallNum]uint32
	slots    uint32 // times dispatched onto the core
	exitCode int32
}
