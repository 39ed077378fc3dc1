// Package actor implements PathStateActor, the per-path coordinator that
// serializes dispatch and collapses duplicate in-flight work for a path.
package actor

import (
	"sync"

	"github.com/theroutercompany/betterspotlight/internal/queue"
)

// DispatchTask is emitted by the actor when a path becomes eligible for a
// prep worker to pick up.
type DispatchTask struct {
	Path       string
	Generation int64
	Item       queue.WorkItem
}

// PreparedRef is the minimal information the writer needs to ask whether a
// completed prep result is still current for its path.
type PreparedRef struct {
	Path       string
	Generation int64
}

type pathState struct {
	latestGeneration  int64
	inPrep            bool
	pendingMergedType queue.ItemType
	pendingMergedItem queue.WorkItem
	hasPending        bool
	pendingRebuildLane bool
}

// PathStateActor maintains one state machine per path, guaranteeing at
// most one prep task in flight per path and that newer ingress always
// supersedes older prep output.
type PathStateActor struct {
	mu     sync.Mutex
	states map[string]*pathState

	coalesced int64
}

// New returns an empty PathStateActor.
func New() *PathStateActor {
	return &PathStateActor{states: make(map[string]*pathState)}
}

// OnIngress records a new WorkItem for item.Path. If no prep task is
// currently in flight for the path, it emits a DispatchTask carrying the
// freshly incremented generation. Otherwise the item's type is merged into
// the path's pending follow-up (keeping the higher-priority type) and the
// event is counted as coalesced.
func (a *PathStateActor) OnIngress(item queue.WorkItem) (DispatchTask, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.states[item.Path]
	if !ok {
		st = &pathState{}
		a.states[item.Path] = st
	}
	st.latestGeneration++

	if !st.inPrep {
		st.inPrep = true
		return DispatchTask{Path: item.Path, Generation: st.latestGeneration, Item: item}, true
	}

	if !st.hasPending || higherPriority(item.Type, st.pendingMergedType) {
		st.pendingMergedType = item.Type
		st.pendingMergedItem = item
	}
	st.hasPending = true
	if item.RebuildLane {
		st.pendingRebuildLane = true
	}
	a.coalesced++
	return DispatchTask{}, false
}

// OnPrepCompleted signals that the in-flight prep task for ref.Path has
// finished. If ingress arrived while it was in flight, a follow-up
// DispatchTask is emitted using the path's current latestGeneration;
// otherwise the path returns to idle.
func (a *PathStateActor) OnPrepCompleted(ref PreparedRef) (DispatchTask, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.states[ref.Path]
	if !ok {
		return DispatchTask{}, false
	}

	if st.hasPending {
		item := st.pendingMergedItem
		item.RebuildLane = st.pendingRebuildLane
		st.hasPending = false
		st.pendingRebuildLane = false
		return DispatchTask{Path: ref.Path, Generation: st.latestGeneration, Item: item}, true
	}

	st.inPrep = false
	return DispatchTask{}, false
}

// IsStalePrepared reports whether prepared work computed for ref is no
// longer current: true iff a newer ingress has since bumped the path's
// generation. The writer must drop stale prepared work rather than apply it.
func (a *PathStateActor) IsStalePrepared(ref PreparedRef) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.states[ref.Path]
	if !ok {
		return false
	}
	return ref.Generation < st.latestGeneration
}

// LatestGeneration returns the current generation counter for path (0 if
// the path has never been seen).
func (a *PathStateActor) LatestGeneration(path string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.states[path]; ok {
		return st.latestGeneration
	}
	return 0
}

// CoalescedCount returns the number of ingress events that were merged into
// an existing in-flight path rather than dispatched immediately.
func (a *PathStateActor) CoalescedCount() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.coalesced
}

// higherPriority reports whether candidate outranks current under the
// merge rule: Delete beats ModifiedContent beats NewFile beats
// RescanDirectory (lower ItemType ordinal wins).
func higherPriority(candidate, current queue.ItemType) bool {
	return candidate < current
}
