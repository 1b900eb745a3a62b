package proc

import "testing"

func TestEnqueueRemoveHeadFIFO(t *testing.T) {
	tab := newTestTable(t, 8)
	a, _ := tab.Create(1)
	b, _ := tab.Create(1)
	c, _ := tab.Create(1)

	slots := tab.ReadySlots()
	if len(slots) != 3 {
		t.Fatalf("ReadySlots() len = %d, want 3", len(slots))
	}

	first := tab.RemoveHead()
	if got, _ := tab.FindSlot(a); got != first {
		t.Errorf("RemoveHead() = %d, want slot of first-created pid %d", first, a)
	}
	_ = b
	_ = c
}

func TestRemoveArbitraryPreservesOrder(t *testing.T) {
	tab := newTestTable(t, 8)
	_, _ = tab.Create(1)
	_, _ = tab.Create(1)
	_, _ = tab.Create(1)

	slots := tab.ReadySlots()
	middle := slots[1]

	if !tab.Remove(middle) {
		t.Fatalf("Remove(%d) = false, want true", middle)
	}

	remaining := tab.ReadySlots()
	if len(remaining) != 2 {
		t.Fatalf("len(remaining) = %d, want 2", len(remaining))
	}
	if remaining[0] != slots[0] || remaining[1] != slots[2] {
		t.Errorf("remaining = %v, want [%d %d]", remaining, slots[0], slots[2])
	}
}

func TestRemoveNotInQueueReturnsFalse(t *testing.T) {
	tab := newTestTable(t, 8)
	_, _ = tab.Create(1)

	if tab.Remove(7) {
		t.Error("Remove(7) = true, want false for a slot never queued")
	}
}

func TestRemoveHeadOnEmptyQueue(t *testing.T) {
	tab := newTestTable(t, 4)
	if got := tab.RemoveHead(); got != NoSlot {
		t.Errorf("RemoveHead() on empty queue = %d, want NoSlot", got)
	}
}

func TestNumReadyMatchesQueueLength(t *testing.T) {
	tab := newTestTable(t, 8)
	for i := 0; i < 5; i++ {
		_, _ = tab.Create(1)
	}
	if got := tab.NumReady(); got != 5 {
		t.Errorf("NumReady() = %d, want 5", got)
	}
}
