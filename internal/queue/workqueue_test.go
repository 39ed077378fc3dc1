package queue

import "testing"

func TestEnqueueDequeueOrdersByPriority(t *testing.T) {
	q := New()
	q.Enqueue(WorkItem{Type: RescanDirectory, Path: "c"})
	q.Enqueue(WorkItem{Type: NewFile, Path: "b"})
	q.Enqueue(WorkItem{Type: Delete, Path: "a"})

	first, ok := q.Dequeue()
	if !ok || first.Type != Delete {
		t.Fatalf("expected Delete first, got %+v", first)
	}
	second, ok := q.Dequeue()
	if !ok || second.Type != NewFile {
		t.Fatalf("expected NewFile second, got %+v", second)
	}
	third, ok := q.Dequeue()
	if !ok || third.Type != RescanDirectory {
		t.Fatalf("expected RescanDirectory third, got %+v", third)
	}
}

func TestEnqueueFIFOWithinSamePriority(t *testing.T) {
	q := New()
	q.Enqueue(WorkItem{Type: NewFile, Path: "first"})
	q.Enqueue(WorkItem{Type: NewFile, Path: "second"})

	a, _ := q.Dequeue()
	b, _ := q.Dequeue()
	if a.Path != "first" || b.Path != "second" {
		t.Fatalf("expected FIFO order within priority tier, got %q then %q", a.Path, b.Path)
	}
}

// TestBackpressureEvictsRescanDirectoryForHigherPriority implements
// scenario S6 from spec.md: a full queue of RescanDirectory items yields
// room for an incoming NewFile, depth stays at capacity, and the dropped
// counter advances.
func TestBackpressureEvictsRescanDirectoryForHigherPriority(t *testing.T) {
	q := New()
	for i := 0; i < MaxQueueSize; i++ {
		if !q.Enqueue(WorkItem{Type: RescanDirectory, Path: "dir"}) {
			t.Fatalf("unexpected refusal while filling queue at item %d", i)
		}
	}
	if q.Size() != MaxQueueSize {
		t.Fatalf("expected full queue, got size %d", q.Size())
	}

	if !q.Enqueue(WorkItem{Type: NewFile, Path: "urgent"}) {
		t.Fatal("expected NewFile to be accepted by evicting a RescanDirectory")
	}

	if q.Size() != MaxQueueSize {
		t.Fatalf("expected depth to remain at capacity, got %d", q.Size())
	}
	if q.DroppedItems() < 1 {
		t.Fatalf("expected droppedItems >= 1, got %d", q.DroppedItems())
	}

	next, ok := q.Dequeue()
	if !ok || next.Path != "urgent" || next.Type != NewFile {
		t.Fatalf("expected the NewFile to dequeue first, got %+v", next)
	}
}

func TestEnqueueRefusesWhenFullOfNonRescanItems(t *testing.T) {
	q := New()
	for i := 0; i < MaxQueueSize; i++ {
		q.Enqueue(WorkItem{Type: NewFile, Path: "f"})
	}
	if q.Enqueue(WorkItem{Type: NewFile, Path: "overflow"}) {
		t.Fatal("expected enqueue to be refused when no RescanDirectory item can be evicted")
	}
	if q.DroppedItems() != 1 {
		t.Fatalf("expected exactly one dropped item, got %d", q.DroppedItems())
	}
}

func TestDequeueReturnsFalseWhenPaused(t *testing.T) {
	q := New()
	q.Pause()
	q.Enqueue(WorkItem{Type: NewFile, Path: "x"})

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue()
		done <- ok
	}()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected Dequeue to return false while paused")
		}
	}
}

func TestDequeueReturnsFalseAfterShutdown(t *testing.T) {
	q := New()
	q.Shutdown()
	_, ok := q.Dequeue()
	if ok {
		t.Fatal("expected Dequeue to return false after shutdown")
	}
}

func TestActiveItemsTracksQueueDepth(t *testing.T) {
	q := New()
	q.Enqueue(WorkItem{Type: NewFile, Path: "a"})
	q.Enqueue(WorkItem{Type: NewFile, Path: "b"})
	if q.ActiveItems() != 2 {
		t.Fatalf("expected 2 active items, got %d", q.ActiveItems())
	}
	q.Dequeue()
	if q.ActiveItems() != 1 {
		t.Fatalf("expected 1 active item after dequeue, got %d", q.ActiveItems())
	}
}
