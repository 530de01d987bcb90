package sim

import "testing"

func TestWaitQueue_FIFOWithinLevel(t *testing.T) {
	// GIVEN a single-level queue with jobs [1, 2, 3]
	wq := NewWaitQueue(1)
	for _, id := range []int{1, 2, 3} {
		wq.Enqueue(id, 0)
	}

	// WHEN drained
	// THEN jobs come out in arrival order
	for _, want := range []int{1, 2, 3} {
		got, ok := wq.Dequeue()
		if !ok || got != want {
			t.Fatalf("Dequeue: got (%d, %v), want (%d, true)", got, ok, want)
		}
	}
	if _, ok := wq.Dequeue(); ok {
		t.Error("Dequeue on empty queue returned ok")
	}
}

func TestWaitQueue_HigherLevelServedFirst(t *testing.T) {
	// GIVEN low-priority jobs enqueued before a high-priority one
	wq := NewWaitQueue(3)
	wq.Enqueue(10, 2)
	wq.Enqueue(11, 1)
	wq.Enqueue(12, 0)

	if wq.Len() != 3 {
		t.Fatalf("Len = %d, want 3", wq.Len())
	}
	// THEN the lowest non-empty level drains only once higher levels are empty
	for _, want := range []int{12, 11, 10} {
		if got, _ := wq.Dequeue(); got != want {
			t.Errorf("Dequeue: got %d, want %d", got, want)
		}
	}
}

func TestWaitQueue_PrependFront_InsertsAtFrontOfLevel(t *testing.T) {
	// GIVEN level 1 holding [A, B]
	wq := NewWaitQueue(2)
	wq.Enqueue(1, 1)
	wq.Enqueue(2, 1)

	// WHEN a preempted job X is prepended to level 1
	wq.PrependFront(9, 1)

	// THEN X is served before A and B
	if got, _ := wq.Dequeue(); got != 9 {
		t.Errorf("PrependFront: got %d first, want 9", got)
	}
	if wq.Len() != 2 {
		t.Errorf("Len = %d, want 2", wq.Len())
	}
}

func TestNewWaitQueue_AtLeastOneLevel(t *testing.T) {
	wq := NewWaitQueue(0)
	wq.Enqueue(1, 0)
	if wq.Len() != 1 {
		t.Errorf("Len = %d, want 1", wq.Len())
	}
}
