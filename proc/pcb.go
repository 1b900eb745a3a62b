// Package proc implements the fixed-capacity process table: the array
// of process control blocks (PCBs), the ready queue threaded through
// it via next-slot indices, and the lifecycle operations (create,
// terminate, set_current) that the scheduler and IPC mailbox build on.
package proc

import "github.com/kacchios/kernel/memory"

// State is the lifecycle state of a process table slot.
type State int

const (
	// Free means the slot holds no process.
	Free State = iota
	// Ready means the process is eligible to be dispatched.
	Ready
	// Curr means the process currently owns the CPU.
	Curr
)

// String renders State for logging and test failure messages.
func (s State) String() string {
	switch s {
	case Free:
		return "FREE"
	case Ready:
		return "READY"
	case Curr:
		return "CURR"
	default:
		return "UNKNOWN"
	}
}

// NoSlot is the sentinel slot index meaning "none": an empty ready
// queue, a PCB's next field when it is not queued, or a failed
// find-slot lookup.
const NoSlot = int32(-1)

// NoPid is the sentinel pid meaning "no process" / "slot unused".
const NoPid = int32(-1)

// MsgMax is the maximum payload length of a single IPC message. It is
// a build-time constant of the core's ABI (spec §6) rather than a
// per-Table configuration value, since the Inbox array is sized by it.
const MsgMax = 128

// Inbox is the one-slot mailbox carried inside every PCB. The design
// is deliberately lossy: a second Send before the first is Received
// overwrites it (see the ipc package for the opt-in stricter variant).
type Inbox struct {
	SenderPid int32
	Length    int
	Bytes     [MsgMax]byte
	HasMsg    bool
}

// PCB is one process control block: one per table slot, stable for
// the life of the kernel. Fields are exported because the scheduler
// and IPC packages are tightly coupled collaborators that mutate this
// same data the spec describes as shared state, not private state the
// table hides from them — the table retains sole ownership of ready
// queue *linkage* (Enqueue/RemoveHead/Remove), which callers must use
// instead of touching Next directly.
type PCB struct {
	Pid              int32
	State            State
	Priority         int
	OriginalPriority int
	StackBase        memory.Block
	StackPtr         uint32 // offset into the stack block; stack grows down
	Next             int32  // ready-queue link; NoSlot when not queued

	Quantum       int
	RemainingTime int
	CPUTime       int
	WaitTime      int

	Inbox Inbox
}

func freePCB() PCB {
	return PCB{Pid: NoPid, State: Free, Next: NoSlot}
}
