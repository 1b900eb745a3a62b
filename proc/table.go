package proc

import (
	"errors"

	"github.com/kacchios/kernel/memory"
)

// ErrNoFreeSlot is returned by Create when every slot is occupied.
var ErrNoFreeSlot = errors.New("proc: no free process slot")

// ErrNotFound is returned by operations that take a pid when no slot
// currently holds it.
var ErrNotFound = errors.New("proc: no such pid")

// Table is the fixed-size array of N process control blocks, plus the
// single ready queue threaded through it, and the pid allocator and
// "current process" identity the scheduler reads and writes.
type Table struct {
	slots []PCB
	ready readyQueue

	nextPid int32
	currPid int32

	heap           *memory.Heap
	stackPerProc   uint32
	defaultQuantum int
}

// NewTable constructs a Table of exactly n slots. heap backs each
// process's kernel stack (Q bytes, stackPerProc) on Create, and
// defaultQuantum seeds PCB.Quantum for every newly created process.
func NewTable(n int, heap *memory.Heap, stackPerProc uint32, defaultQuantum int) *Table {
	t := &Table{
		slots:          make([]PCB, n),
		heap:           heap,
		stackPerProc:   stackPerProc,
		defaultQuantum: defaultQuantum,
	}
	t.Init()
	return t
}

// Init resets every slot to FREE, resets the pid allocator to 1,
// empties the ready queue, and clears currpid. It is idempotent but
// not concurrent-safe — callers (kernel.Kernel) serialize access.
func (t *Table) Init() {
	for i := range t.slots {
		t.slots[i] = freePCB()
	}
	t.ready = readyQueue{head: NoSlot, tail: NoSlot}
	t.nextPid = 1
	t.currPid = NoPid
}

// Len returns the fixed number of slots in the table (N).
func (t *Table) Len() int {
	return len(t.slots)
}

func (t *Table) findSlot(pid int32) (int32, bool) {
	for i := range t.slots {
		if t.slots[i].Pid == pid && t.slots[i].State != Free {
			return int32(i), true
		}
	}
	return NoSlot, false
}

// FindSlot returns the slot index holding pid, or (NoSlot, false) if
// no slot matches.
func (t *Table) FindSlot(pid int32) (int32, bool) {
	return t.findSlot(pid)
}

// Slot returns a pointer to the PCB at idx, for use by the scheduler
// and IPC packages, which are spec-mandated collaborators sharing this
// state. Ready-queue linkage (the Next field) must still only be
// changed via Enqueue/RemoveHead/Remove.
func (t *Table) Slot(idx int32) *PCB {
	return &t.slots[idx]
}

// Create finds the lowest-indexed FREE slot (deterministic tie-break),
// allocates a Q-byte kernel stack from the heap, and on success
// assigns the next pid, marks the slot READY, and appends it to the
// ready queue. Returns -1 (with an error) if no slot is free or the
// heap allocation fails; in the latter case the slot is left FREE.
func (t *Table) Create(priority int) (int32, error) {
	slot := NoSlot
	for i := range t.slots {
		if t.slots[i].State == Free {
			slot = int32(i)
			break
		}
	}
	if slot == NoSlot {
		return NoPid, ErrNoFreeSlot
	}

	stackBase, err := t.heap.Alloc(t.stackPerProc)
	if err != nil {
		return NoPid, err
	}

	pid := t.nextPid
	t.nextPid++

	pcb := &t.slots[slot]
	*pcb = PCB{
		Pid:              pid,
		State:            Ready,
		Priority:         priority,
		OriginalPriority: priority,
		StackBase:        stackBase,
		StackPtr:         t.stackPerProc - 4, // stack grows down from near the high end
		Next:             NoSlot,
		Quantum:          t.defaultQuantum,
	}

	t.Enqueue(slot)
	return pid, nil
}

// Terminate removes pid's slot from the ready queue if present,
// returns its kernel stack to the heap, and resets the slot to FREE.
// If pid was the current process, currpid becomes -1. Returns
// ErrNotFound if no slot matches pid.
func (t *Table) Terminate(pid int32) error {
	slot, ok := t.findSlot(pid)
	if !ok {
		return ErrNotFound
	}

	if t.slots[slot].State == Ready {
		t.Remove(slot)
	}

	if t.slots[slot].StackBase != (memory.Block{}) {
		t.heap.Free(t.slots[slot].StackBase)
	}

	t.slots[slot] = freePCB()

	if t.currPid == pid {
		t.currPid = NoPid
	}
	return nil
}

// SetCurrent makes pid the current process. It is a no-op if pid is
// not found. If a process is currently CURR, it is demoted to READY
// and re-enqueued at the tail. If the target was in the ready queue,
// it is removed from it. Calling SetCurrent(x) twice in a row is
// equivalent to calling it once.
func (t *Table) SetCurrent(pid int32) {
	slot, ok := t.findSlot(pid)
	if !ok {
		return
	}

	if t.currPid != NoPid {
		if oldSlot, ok := t.findSlot(t.currPid); ok && t.slots[oldSlot].State == Curr {
			t.slots[oldSlot].State = Ready
			t.Enqueue(oldSlot)
		}
	}

	if t.slots[slot].State == Ready {
		t.Remove(slot)
	}

	t.slots[slot].State = Curr
	t.currPid = pid
}

// CurrentPid returns the pid of the currently running process, or
// NoPid if none.
func (t *Table) CurrentPid() int32 {
	return t.currPid
}

// GetPid is an alias of CurrentPid, named after the spec's accessor.
func (t *Table) GetPid() int32 {
	return t.currPid
}

// GetState returns the state of pid's slot.
func (t *Table) GetState(pid int32) (State, bool) {
	slot, ok := t.findSlot(pid)
	if !ok {
		return Free, false
	}
	return t.slots[slot].State, true
}

// GetPriority returns the current (possibly aged) priority of pid.
func (t *Table) GetPriority(pid int32) (int, bool) {
	slot, ok := t.findSlot(pid)
	if !ok {
		return 0, false
	}
	return t.slots[slot].Priority, true
}

// IsValidPid reports whether pid currently names a non-FREE slot.
func (t *Table) IsValidPid(pid int32) bool {
	_, ok := t.findSlot(pid)
	return ok
}

// GetStackBase returns the heap block backing pid's kernel stack.
func (t *Table) GetStackBase(pid int32) (memory.Block, bool) {
	slot, ok := t.findSlot(pid)
	if !ok {
		return memory.Block{}, false
	}
	return t.slots[slot].StackBase, true
}

// Info is a read-only snapshot of one non-FREE slot, for diagnostics.
type Info struct {
	Slot     int32
	Pid      int32
	State    State
	Priority int
}

// Snapshot returns a read-only copy of every non-FREE slot, in slot
// order. It performs no scheduling decision and does not mutate the
// table; it exists to support status reporting (e.g. the demo
// harness's process-table printout).
func (t *Table) Snapshot() []Info {
	out := make([]Info, 0, len(t.slots))
	for i := range t.slots {
		if t.slots[i].State == Free {
			continue
		}
		out = append(out, Info{
			Slot:     int32(i),
			Pid:      t.slots[i].Pid,
			State:    t.slots[i].State,
			Priority: t.slots[i].Priority,
		})
	}
	return out
}
