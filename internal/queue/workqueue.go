// Package queue implements the bounded, priority-ordered work queue that
// feeds the indexing pipeline.
package queue

import "sync"

// ItemType is the kind of filesystem change a WorkItem represents.
type ItemType int

const (
	Delete ItemType = iota
	ModifiedContent
	NewFile
	RescanDirectory
)

// priority returns the dispatch priority for t; lower dispatches first.
func (t ItemType) priority() int { return int(t) }

func (t ItemType) String() string {
	switch t {
	case Delete:
		return "Delete"
	case ModifiedContent:
		return "ModifiedContent"
	case NewFile:
		return "NewFile"
	case RescanDirectory:
		return "RescanDirectory"
	default:
		return "Unknown"
	}
}

// MaxQueueSize is the fixed capacity of a WorkQueue.
const MaxQueueSize = 10000

// WorkItem is an in-memory unit of pending work.
type WorkItem struct {
	Type        ItemType
	Path        string
	KnownSize   int64
	KnownMtime  int64
	HasKnown    bool
	RetryCount  int
	RebuildLane bool
}

// WorkQueue is a fixed-capacity priority queue ordered by ItemType
// (Delete < ModifiedContent < NewFile < RescanDirectory, lowest dispatched
// first). At capacity, enqueue only succeeds by evicting a RescanDirectory
// item; anything else is refused and counted as dropped.
type WorkQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []WorkItem
	paused bool
	closed bool

	dropped int64
	active  int64
}

// New returns an empty WorkQueue.
func New() *WorkQueue {
	q := &WorkQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue inserts item, maintaining priority order. If the queue is at
// capacity, it tries to evict the single lowest-priority (highest ordinal)
// RescanDirectory entry to make room; if none exists, the item is refused
// and the dropped counter increments. Returns true if the item was queued.
func (q *WorkQueue) Enqueue(item WorkItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= MaxQueueSize {
		if !q.evictOneRescan() {
			q.dropped++
			return false
		}
		// The evicted RescanDirectory item is itself a dropped item, even
		// though the incoming item went on to be queued.
		q.dropped++
	}

	idx := q.insertionIndex(item.Type)
	q.items = append(q.items, WorkItem{})
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = item
	q.active++
	q.cond.Signal()
	return true
}

// evictOneRescan removes the last (lowest-priority) RescanDirectory item in
// the queue, if any, returning true on success. Caller must hold q.mu.
func (q *WorkQueue) evictOneRescan() bool {
	for i := len(q.items) - 1; i >= 0; i-- {
		if q.items[i].Type == RescanDirectory {
			q.items = append(q.items[:i], q.items[i+1:]...)
			q.active--
			return true
		}
	}
	return false
}

// insertionIndex returns the position to insert an item of type t keeping
// q.items sorted ascending by priority (stable: inserted after equal-
// priority items, i.e. FIFO within a priority tier). Caller must hold q.mu.
func (q *WorkQueue) insertionIndex(t ItemType) int {
	p := t.priority()
	lo, hi := 0, len(q.items)
	for lo < hi {
		mid := (lo + hi) / 2
		if q.items[mid].Type.priority() <= p {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Dequeue blocks until an item is available, the queue is shut down, or it
// is paused. Returns ok=false on shutdown or while paused.
func (q *WorkQueue) Dequeue() (WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed && !q.paused {
		q.cond.Wait()
	}
	if q.closed || q.paused || len(q.items) == 0 {
		return WorkItem{}, false
	}

	item := q.items[0]
	q.items = q.items[1:]
	q.active--
	return item, true
}

// Pause stops Dequeue from returning new items until Resume is called.
func (q *WorkQueue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Resume lifts a prior Pause.
func (q *WorkQueue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Shutdown permanently wakes any blocked Dequeue callers with ok=false.
func (q *WorkQueue) Shutdown() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *WorkQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *WorkQueue) DroppedItems() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *WorkQueue) ActiveItems() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

func (q *WorkQueue) IsPaused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}
