package kernel

import (
	"encoding/binary"
	"fmt"
)

// Syscall numbers, following the RISC-V Linux numbering the original user
// programs were built against.
const (
	SysWrite    uint32 = 64
	SysExit     uint32 = 93
	SysYield    uint32 = 124
	SysGetTime  uint32 = 169
	SysTaskInfo uint32 = 410
)

// User-visible file descriptors for sys_write.
const (
	fdStdout = 1
	fdStderr = 2
)

type syscallFn func(k *Kernel, a0, a1, a2 uint32) int32

type sysentry struct {
	name string
	fn   syscallFn
}

// sysent maps syscall ids to implementations. exit and yield are not here:
// they reschedule, so the dispatcher handles them inline.
var sysent = map[uint32]sysentry{
	SysWrite:    {"write", sysWrite},
	SysGetTime:  {"get_time", sysGetTime},
	SysTaskInfo: {"task_info", sysTaskInfo},
}

// sysWrite copies len bytes at buf out of user memory to the console.
// Returns the byte count, or -1 on a bad descriptor or unreadable buffer.
func sysWrite(k *Kernel, fd, buf, n uint32) int32 {
	if fd != fdStdout && fd != fdStderr {
		return -1
	}
	if n == 0 {
		return 0
	}
	mem := k.m.Mem()
	// The length is guest-controlled: prove the whole range readable before
	// allocating the copy. User permissions apply throughout, so a task can
	// neither leak kernel memory nor size a host allocation itself.
	if err := mem.Readable(buf, n, true); err != nil {
		return -1
	}
	p := make([]byte, n)
	if err := mem.ReadBytes(buf, p, true); err != nil {
		return -1
	}
	if k.console != nil {
		k.console.Write(p)
	}
	return int32(n)
}

// TimeVal is the user-visible layout written by sys_get_time:
// two little-endian words, seconds then microseconds.
const timeValBytes = 8

func sysGetTime(k *Kernel, ptr, _, _ uint32) int32 {
	ms := k.now()
	var b [timeValBytes]byte
	binary.LittleEndian.PutUint32(b[0:4], uint32(ms/1000))
	binary.LittleEndian.PutUint32(b[4:8], uint32(ms%1000)*1000)
	if err := k.m.Mem().WriteBytes(ptr, b[:], true); err != nil {
		return -1
	}
	return 0
}

// TaskInfo is the record returned by sys_task_info for the calling task.
//
// The counters are read after the in-flight call has been recorded:
// accounting happens before dispatch, so the report includes this very
// invocation. The wire layout is little-endian:
//
//	u32                 status
//	u32[MaxSyscallNum]  per-id invocation counts
//	u32                 scheduling slots since first dispatch
type TaskInfo struct {
	Status   TaskStatus
	Syscalls [MaxSyscallNum]uint32
	Slots    uint32
}

// TaskInfoBytes is the encoded size of a TaskInfo record.
const TaskInfoBytes = 4 + 4*MaxSyscallNum + 4

// Encode renders the record in its user-visible wire layout.
func (ti *TaskInfo) Encode() []byte {
	b := make([]byte, TaskInfoBytes)
	binary.LittleEndian.PutUint32(b[0:4], uint32(ti.Status))
	for i, c := range ti.Syscalls {
		binary.LittleEndian.PutUint32(b[4+i*4:], c)
	}
	binary.LittleEndian.PutUint32(b[4+MaxSyscallNum*4:], ti.Slots)
	return b
}

// DecodeTaskInfo parses an encoded record (used by tests and tooling).
func DecodeTaskInfo(b []byte) (TaskInfo, bool) {
	var ti TaskInfo
	if len(b) < TaskInfoBytes {
		return ti, false
	}
	ti.Status = TaskStatus(binary.LittleEndian.Uint32(b[0:4]))
	for i := range ti.Syscalls {
		ti.Syscalls[i] = binary.LittleEndian.Uint32(b[4+i*4:])
	}
	ti.Slots = binary.LittleEndian.Uint32(b[4+MaxSyscallNum*4:])
	return ti, true
}

func sysTaskInfo(k *Kernel, ptr, _, _ uint32) int32 {
	cur := k.tm.Current()
	ti := TaskInfo{
		Status:   k.tm.Status(cur),
		Syscalls: k.tm.SyscallCounts(cur),
		Slots:    k.tm.SchedCount(cur),
	}
	if err := k.m.Mem().WriteBytes(ptr, ti.Encode(), true); err != nil {
		return -1
	}
	return 0
}

func syscallName(id uint32) string {
	switch id {
	case SysExit:
		return "exit"
	case SysYield:
		return "yield"
	}
	if e, ok := sysent[id]; ok {
		return e.name
	}
	return fmt.Sprintf("sys#%d", id)
}
