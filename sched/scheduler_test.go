package sched

import (
	"testing"

	"github.com/kacchios/kernel/memory"
	"github.com/kacchios/kernel/proc"
)

type fakeCtxsw struct {
	switches int
}

func (f *fakeCtxsw) Switch(old, new *uint32) {
	f.switches++
}

func newTestScheduler(t *testing.T, n int) (*Scheduler, *proc.Table, *fakeCtxsw) {
	t.Helper()
	heap := memory.NewHeap(8192)
	tab := proc.NewTable(n, heap, 512, 10)
	cs := &fakeCtxsw{}
	return New(tab, cs), tab, cs
}

// Scenario 3 from spec.md §8.
func TestSchedulePicksHighestPriority(t *testing.T) {
	s, tab, _ := newTestScheduler(t, 8)

	_, _ = tab.Create(1)
	b, _ := tab.Create(3)
	_, _ = tab.Create(2)

	if got := s.ScheduleNext(); got != b {
		t.Errorf("ScheduleNext() = %d, want %d", got, b)
	}
}

func TestSchedulePicksEarliestOnTie(t *testing.T) {
	s, tab, _ := newTestScheduler(t, 8)

	a, _ := tab.Create(5)
	_, _ = tab.Create(5)

	if got := s.ScheduleNext(); got != a {
		t.Errorf("ScheduleNext() = %d, want earliest-enqueued %d", got, a)
	}
}

func TestRoundRobinPicksHead(t *testing.T) {
	s, tab, _ := newTestScheduler(t, 8)
	s.policy = RoundRobin

	a, _ := tab.Create(1)
	_, _ = tab.Create(9) // higher priority, must be ignored under RR

	if got := s.ScheduleNext(); got != a {
		t.Errorf("ScheduleNext() = %d, want head-of-queue %d", got, a)
	}
}

func TestScheduleNextEmptyReturnsNoPid(t *testing.T) {
	s, _, _ := newTestScheduler(t, 4)
	if got := s.ScheduleNext(); got != proc.NoPid {
		t.Errorf("ScheduleNext() = %d, want NoPid", got)
	}
}

// Scenario 4 from spec.md §8.
func TestReschedDemotesPreviousCurrent(t *testing.T) {
	s, tab, cs := newTestScheduler(t, 8)

	a, _ := tab.Create(1)
	b, _ := tab.Create(3)

	tab.SetCurrent(a)

	if got := s.ScheduleNext(); got != b {
		t.Fatalf("ScheduleNext() = %d, want %d", got, b)
	}

	s.Resched()

	stateA, _ := tab.GetState(a)
	stateB, _ := tab.GetState(b)
	if stateA != proc.Ready {
		t.Errorf("GetState(a) = %v, want Ready", stateA)
	}
	if stateB != proc.Curr {
		t.Errorf("GetState(b) = %v, want Curr", stateB)
	}
	if tab.NumReady() != 1 {
		t.Errorf("NumReady() = %d, want 1", tab.NumReady())
	}
	if cs.switches != 1 {
		t.Errorf("ctxsw.switches = %d, want 1", cs.switches)
	}
}

func TestReschedFirstDispatchSkipsContextSwitch(t *testing.T) {
	s, tab, cs := newTestScheduler(t, 8)
	pid, _ := tab.Create(1)

	s.Resched()

	if tab.CurrentPid() != pid {
		t.Errorf("CurrentPid() = %d, want %d", tab.CurrentPid(), pid)
	}
	if cs.switches != 0 {
		t.Errorf("ctxsw.switches = %d, want 0 on first dispatch", cs.switches)
	}
}

func TestReschedSameProcessIsNoop(t *testing.T) {
	s, tab, cs := newTestScheduler(t, 8)
	pid, _ := tab.Create(1)
	s.Resched()
	cs.switches = 0

	s.Resched() // only one ready process: picks itself again

	if cs.switches != 0 {
		t.Errorf("ctxsw.switches = %d, want 0 (same process)", cs.switches)
	}
	if tab.CurrentPid() != pid {
		t.Errorf("CurrentPid() = %d, want %d", tab.CurrentPid(), pid)
	}
}

func TestReschedNoReadyProcessDoesNotPanic(t *testing.T) {
	s, _, _ := newTestScheduler(t, 4)
	s.Resched() // must log and return, not panic
}

func TestReschedResetsRemainingTimeToQuantum(t *testing.T) {
	s, tab, _ := newTestScheduler(t, 8)
	pid, _ := tab.Create(1)

	s.Resched()

	slot, _ := tab.FindSlot(pid)
	if got := tab.Slot(slot).RemainingTime; got != 10 {
		t.Errorf("RemainingTime = %d, want 10 (default quantum)", got)
	}
}

func TestYieldUpdatesTimeAccounting(t *testing.T) {
	s, tab, _ := newTestScheduler(t, 8)
	pid, _ := tab.Create(1)
	s.Resched()

	s.Yield()

	slot, _ := tab.FindSlot(pid)
	pcb := tab.Slot(slot)
	if pcb.CPUTime != 1 {
		t.Errorf("CPUTime = %d, want 1", pcb.CPUTime)
	}
	if pcb.RemainingTime != 9 {
		t.Errorf("RemainingTime = %d, want 9", pcb.RemainingTime)
	}
}

func TestAgingBoostsLongWaitingReadyProcess(t *testing.T) {
	s, tab, _ := newTestScheduler(t, 8)
	s.agingThreshold = 2

	curr, _ := tab.Create(5)
	waiter, _ := tab.Create(1)
	tab.SetCurrent(curr)

	s.applyAging()
	s.applyAging()

	slot, _ := tab.FindSlot(waiter)
	pcb := tab.Slot(slot)
	if pcb.Priority != 2 {
		t.Errorf("waiter priority = %d, want 2 (boosted once)", pcb.Priority)
	}
	if pcb.WaitTime != 0 {
		t.Errorf("waiter WaitTime = %d, want reset to 0", pcb.WaitTime)
	}
}

func TestAgingCapsAtPrioCap(t *testing.T) {
	s, tab, _ := newTestScheduler(t, 8)
	s.agingThreshold = 1
	s.prioCap = 10

	pid, _ := tab.Create(10)
	for i := 0; i < 5; i++ {
		s.applyAging()
	}

	slot, _ := tab.FindSlot(pid)
	if got := tab.Slot(slot).Priority; got != 10 {
		t.Errorf("priority = %d, want capped at 10", got)
	}
}

func TestAgingRestoresOriginalPriorityOnDispatch(t *testing.T) {
	s, tab, _ := newTestScheduler(t, 8)
	pid, _ := tab.Create(3)
	slot, _ := tab.FindSlot(pid)
	tab.Slot(slot).Priority = 8 // simulate a prior boost
	tab.SetCurrent(pid)

	s.applyAging()

	if got := tab.Slot(slot).Priority; got != 3 {
		t.Errorf("priority = %d, want restored to original 3", got)
	}
}

func TestUserProcessExitTerminatesAndReschedules(t *testing.T) {
	s, tab, _ := newTestScheduler(t, 8)
	a, _ := tab.Create(1)
	b, _ := tab.Create(1)
	tab.SetCurrent(a)

	s.UserProcessExit()

	if tab.IsValidPid(a) {
		t.Error("pid a should have been terminated")
	}
	if tab.CurrentPid() != b {
		t.Errorf("CurrentPid() = %d, want %d", tab.CurrentPid(), b)
	}
}

func TestSetGetQuantum(t *testing.T) {
	s, tab, _ := newTestScheduler(t, 8)
	pid, _ := tab.Create(1)

	s.SetQuantum(pid, 42)

	got, ok := s.GetQuantum(pid)
	if !ok || got != 42 {
		t.Errorf("GetQuantum() = (%d, %v), want (42, true)", got, ok)
	}
}
