// Package sched implements the cooperative scheduler: priority-based
// process selection, ready-queue bookkeeping, aging against
// starvation, and the handoff to the architectural context switch.
package sched

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/kacchios/kernel/proc"
)

// Policy selects how ScheduleNext picks the next process to run.
type Policy int

const (
	// PriorityRR scans the ready queue for the maximum priority,
	// breaking ties by earliest enqueue. It is the default.
	PriorityRR Policy = iota
	// RoundRobin selects the head of the ready queue.
	RoundRobin
)

// ErrNoReadyProcess is surfaced (via logging, per spec) when Resched
// finds no ready process to dispatch. It is not returned as an error
// value from Resched/Yield, which never fail from the caller's
// perspective — it exists so other layers (e.g. the demo harness) can
// match on it in their own diagnostics.
var ErrNoReadyProcess = errors.New("sched: no ready process to run")

// ContextSwitcher is the architecture-specific collaborator that
// saves the caller's registers onto the old stack, loads them from
// the new one, and returns into the new context. proc.Table.Create
// only sets a fresh process's StackPtr near the high end of its stack
// block; it writes no entry-point or UserProcessExit return address
// into the stack.
type ContextSwitcher interface {
	Switch(oldSP, newSP *uint32)
}

// Scheduler selects and dispatches processes against a *proc.Table.
type Scheduler struct {
	table  *proc.Table
	ctxsw  ContextSwitcher
	log    zerolog.Logger
	policy Policy

	agingThreshold int
	agingBoost     int
	prioCap        int
}

// Option configures a Scheduler at construction, mirroring the
// functional-option style used elsewhere for build-time constants.
type Option func(*Scheduler)

// WithPolicy overrides the default PriorityRR policy.
func WithPolicy(p Policy) Option {
	return func(s *Scheduler) { s.policy = p }
}

// WithLogger attaches a logger for the scheduler's diagnostic output.
// The default is zerolog's no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithAging overrides the default aging threshold, boost, and
// priority cap (spec defaults: 50, 1, 10).
func WithAging(threshold, boost, cap int) Option {
	return func(s *Scheduler) {
		s.agingThreshold = threshold
		s.agingBoost = boost
		s.prioCap = cap
	}
}

// New constructs a Scheduler over table, dispatching context switches
// through ctxsw.
func New(table *proc.Table, ctxsw ContextSwitcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		table:          table,
		ctxsw:          ctxsw,
		log:            zerolog.Nop(),
		policy:         PriorityRR,
		agingThreshold: 50,
		agingBoost:     1,
		prioCap:        10,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the scheduler's active selection policy.
func (s *Scheduler) Policy() Policy {
	return s.policy
}

// ScheduleNext selects the next pid to run under the active policy
// without mutating any state. Returns proc.NoPid if the ready queue
// is empty.
func (s *Scheduler) ScheduleNext() int32 {
	if s.policy == RoundRobin {
		slot := s.table.ReadyHead()
		if slot == proc.NoSlot {
			return proc.NoPid
		}
		return s.table.Slot(slot).Pid
	}

	best := proc.NoSlot
	bestPrio := -1
	for _, slot := range s.table.ReadySlots() {
		if p := s.table.Slot(slot).Priority; p > bestPrio {
			bestPrio = p
			best = slot
		}
	}
	if best == proc.NoSlot {
		return proc.NoPid
	}
	return s.table.Slot(best).Pid
}

// Resched chooses the next process to run and dispatches it. If no
// process is ready, it logs and returns without touching any state.
// If the chosen process is already current, it returns immediately.
// Otherwise it demotes the current process (if any) back to READY,
// promotes the chosen one to CURR with a fresh quantum, and — if
// there was a previous process — hands off to the ContextSwitcher.
//
// On the very first dispatch (no previous process), the context
// switch is skipped: there is nothing to save the caller's registers
// onto.
func (s *Scheduler) Resched() {
	oldPid := s.table.CurrentPid()
	nextPid := s.ScheduleNext()

	if nextPid == proc.NoPid {
		s.log.Warn().Msg(ErrNoReadyProcess.Error())
		return
	}
	if nextPid == oldPid {
		return
	}

	oldSlot, hadOld := s.table.FindSlot(oldPid)

	// SetCurrent performs steps 3 & 4 of resched: demoting the
	// previous current process back to READY and re-enqueuing it,
	// then dequeuing and promoting the chosen process.
	s.table.SetCurrent(nextPid)

	nextSlot, _ := s.table.FindSlot(nextPid)
	next := s.table.Slot(nextSlot)
	next.RemainingTime = next.Quantum

	s.log.Debug().
		Int32("old_pid", oldPid).
		Int32("new_pid", nextPid).
		Int("priority", next.Priority).
		Msg("sched: dispatch")

	if hadOld && s.ctxsw != nil {
		old := s.table.Slot(oldSlot)
		s.ctxsw.Switch(&old.StackPtr, &next.StackPtr)
	}
}

// Yield is the cooperative entry point a running process calls to
// give up the CPU. It updates time accounting for the current
// process, ages every ready slot, and reschedules.
func (s *Scheduler) Yield() {
	currPid := s.table.CurrentPid()
	if currPid == proc.NoPid {
		return
	}
	slot, ok := s.table.FindSlot(currPid)
	if !ok {
		return
	}

	pcb := s.table.Slot(slot)
	if pcb.RemainingTime > 0 {
		pcb.RemainingTime--
	}
	pcb.CPUTime++

	s.applyAging()
	s.Resched()
}

// UserProcessExit ends the current process. It is not written into
// any process's kernel stack as a return address (proc.Table.Create
// leaves the stack unprimed), so callers invoke it directly. It
// terminates the current process, reschedules, and then returns
// control to its Go caller — a real ContextSwitcher implementation
// dispatches into the next process before this function would ever
// produce a visible return.
func (s *Scheduler) UserProcessExit() {
	if pid := s.table.CurrentPid(); pid != proc.NoPid {
		if err := s.table.Terminate(pid); err != nil {
			s.log.Error().Err(err).Int32("pid", pid).Msg("user_process_exit: terminate failed")
		}
	}
	s.Resched()
}

// SetQuantum sets pid's scheduling quantum and resets its remaining
// time to match. A no-op if pid is not found.
func (s *Scheduler) SetQuantum(pid int32, quantum int) {
	slot, ok := s.table.FindSlot(pid)
	if !ok {
		return
	}
	pcb := s.table.Slot(slot)
	pcb.Quantum = quantum
	pcb.RemainingTime = quantum
}

// GetQuantum returns pid's configured quantum.
func (s *Scheduler) GetQuantum(pid int32) (int, bool) {
	slot, ok := s.table.FindSlot(pid)
	if !ok {
		return 0, false
	}
	return s.table.Slot(slot).Quantum, true
}

func (s *Scheduler) applyAging() {
	for i := 0; i < s.table.Len(); i++ {
		pcb := s.table.Slot(int32(i))
		switch pcb.State {
		case proc.Ready:
			pcb.WaitTime++
			if pcb.WaitTime >= s.agingThreshold {
				pcb.Priority += s.agingBoost
				if pcb.Priority > s.prioCap {
					pcb.Priority = s.prioCap
				}
				pcb.WaitTime = 0
			}
		case proc.Curr:
			pcb.WaitTime = 0
			if pcb.Priority > pcb.OriginalPriority {
				pcb.Priority = pcb.OriginalPriority
			}
		}
	}
}
