package actor

import (
	"testing"

	"github.com/theroutercompany/betterspotlight/internal/queue"
)

func TestOnIngressDispatchesFirstArrival(t *testing.T) {
	a := New()
	task, dispatched := a.OnIngress(queue.WorkItem{Type: queue.NewFile, Path: "/a"})
	if !dispatched {
		t.Fatal("expected first ingress for a path to dispatch immediately")
	}
	if task.Generation != 1 {
		t.Fatalf("expected generation 1, got %d", task.Generation)
	}
}

func TestOnIngressCoalescesWhileInFlight(t *testing.T) {
	a := New()
	a.OnIngress(queue.WorkItem{Type: queue.NewFile, Path: "/a"})

	_, dispatched := a.OnIngress(queue.WorkItem{Type: queue.ModifiedContent, Path: "/a"})
	if dispatched {
		t.Fatal("expected second ingress while in-flight to coalesce, not dispatch")
	}
	if a.CoalescedCount() != 1 {
		t.Fatalf("expected coalesced count 1, got %d", a.CoalescedCount())
	}
}

func TestOnIngressMergeKeepsHigherPriorityType(t *testing.T) {
	a := New()
	a.OnIngress(queue.WorkItem{Type: queue.RescanDirectory, Path: "/a"})
	a.OnIngress(queue.WorkItem{Type: queue.NewFile, Path: "/a"})
	a.OnIngress(queue.WorkItem{Type: queue.Delete, Path: "/a"})

	task, dispatched := a.OnPrepCompleted(PreparedRef{Path: "/a", Generation: 1})
	if !dispatched {
		t.Fatal("expected a follow-up dispatch after prep completion")
	}
	if task.Item.Type != queue.Delete {
		t.Fatalf("expected merged type Delete (highest priority seen), got %v", task.Item.Type)
	}
}

func TestOnPrepCompletedClearsInFlightWhenNoPending(t *testing.T) {
	a := New()
	a.OnIngress(queue.WorkItem{Type: queue.NewFile, Path: "/a"})

	_, dispatched := a.OnPrepCompleted(PreparedRef{Path: "/a", Generation: 1})
	if dispatched {
		t.Fatal("expected no follow-up dispatch when nothing coalesced")
	}

	// A fresh ingress after prep completion should dispatch immediately
	// again, proving the path returned to idle.
	_, dispatched = a.OnIngress(queue.WorkItem{Type: queue.NewFile, Path: "/a"})
	if !dispatched {
		t.Fatal("expected path to accept new ingress after returning to idle")
	}
}

func TestIsStalePreparedDetectsOutdatedGeneration(t *testing.T) {
	a := New()
	a.OnIngress(queue.WorkItem{Type: queue.NewFile, Path: "/a"})
	a.OnIngress(queue.WorkItem{Type: queue.ModifiedContent, Path: "/a"}) // bumps generation to 2, coalesces

	if !a.IsStalePrepared(PreparedRef{Path: "/a", Generation: 1}) {
		t.Fatal("expected generation 1 prepared work to be stale once generation 2 exists")
	}
	if a.IsStalePrepared(PreparedRef{Path: "/a", Generation: 2}) {
		t.Fatal("expected current generation to not be stale")
	}
}

func TestIsStalePreparedUnknownPathIsNotStale(t *testing.T) {
	a := New()
	if a.IsStalePrepared(PreparedRef{Path: "/never-seen", Generation: 1}) {
		t.Fatal("expected unknown path to report not-stale")
	}
}

func TestLatestGenerationIsMonotonic(t *testing.T) {
	a := New()
	a.OnIngress(queue.WorkItem{Type: queue.NewFile, Path: "/a"})
	g1 := a.LatestGeneration("/a")
	a.OnIngress(queue.WorkItem{Type: queue.ModifiedContent, Path: "/a"})
	g2 := a.LatestGeneration("/a")
	if g2 <= g1 {
		t.Fatalf("expected monotonically increasing generation, got %d then %d", g1, g2)
	}
}
