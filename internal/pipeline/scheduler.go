// Package pipeline hosts the multi-threaded indexing orchestrator: the
// two-lane scheduler, the indexer's prepare/apply contract, and the
// pipeline that wires scan, dispatch, prep, and write threads together.
package pipeline

import (
	"sync"

	"github.com/theroutercompany/betterspotlight/internal/queue"
)

// Lane identifies which of the scheduler's two FIFOs an item travels
// through.
type Lane int

const (
	Live Lane = iota
	Rebuild
)

func (l Lane) String() string {
	if l == Rebuild {
		return "rebuild"
	}
	return "live"
}

const (
	LiveCapacity    = 4000
	RebuildCapacity = 20000

	// dispatchWindow and liveShare implement the 70/30 best-effort ratio
	// over a rolling 100-dispatch window.
	dispatchWindow = 100
	liveShare      = 70
)

// DropReason classifies why an enqueue was refused.
type DropReason int

const (
	DropQueueFull DropReason = iota
	DropMemorySoft
	DropMemoryHard
	DropWriterLag
)

// Stats is a point-in-time snapshot of scheduler state.
type Stats struct {
	LiveDepth      int
	RebuildDepth   int
	Dispatched     int64
	DispatchedLive int64
	DispatchedRebuild int64
	Dropped        map[DropReason]int64
	Coalesced      int64
	StaleDropped   int64
}

// Scheduler is the two-lane FIFO dispatcher described in spec §4.6. Live
// carries filesystem-monitor events; Rebuild carries full-scan output. It
// dispatches with a best-effort 70/30 Live/Rebuild ratio, falling back to
// whichever lane is non-empty to avoid starving either one.
type Scheduler struct {
	mu   sync.Mutex
	cond *sync.Cond

	live    []queue.WorkItem
	rebuild []queue.WorkItem

	paused bool
	closed bool

	windowPos      int
	dispatched     int64
	dispatchedLive int64
	dispatchedRebuild int64
	dropped        map[DropReason]int64
	coalesced      int64
	staleDropped   int64
}

// New returns an empty Scheduler.
func New() *Scheduler {
	s := &Scheduler{dropped: make(map[DropReason]int64)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Enqueue appends item to lane, returning false (and recording reason)
// when the lane is at capacity.
func (s *Scheduler) Enqueue(item queue.WorkItem, lane Lane, reason DropReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch lane {
	case Live:
		if len(s.live) >= LiveCapacity {
			s.dropped[reason]++
			return false
		}
		s.live = append(s.live, item)
	case Rebuild:
		if len(s.rebuild) >= RebuildCapacity {
			s.dropped[reason]++
			return false
		}
		s.rebuild = append(s.rebuild, item)
	}
	s.cond.Signal()
	return true
}

// DequeueBlocking blocks until an item is available, shutdown, or pause.
// It respects the 70/30 Live/Rebuild dispatch ratio over a rolling
// 100-dispatch window, falling back to the other lane when the preferred
// one is empty.
func (s *Scheduler) DequeueBlocking() (queue.WorkItem, Lane, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.live) == 0 && len(s.rebuild) == 0 && !s.closed && !s.paused {
		s.cond.Wait()
	}
	if s.closed || s.paused {
		return queue.WorkItem{}, Live, false
	}
	if len(s.live) == 0 && len(s.rebuild) == 0 {
		return queue.WorkItem{}, Live, false
	}

	preferLive := s.windowPos < liveShare
	s.windowPos = (s.windowPos + 1) % dispatchWindow

	var lane Lane
	switch {
	case preferLive && len(s.live) > 0:
		lane = Live
	case !preferLive && len(s.rebuild) > 0:
		lane = Rebuild
	case len(s.live) > 0:
		lane = Live
	default:
		lane = Rebuild
	}

	var item queue.WorkItem
	if lane == Live {
		item = s.live[0]
		s.live = s.live[1:]
		s.dispatchedLive++
	} else {
		item = s.rebuild[0]
		s.rebuild = s.rebuild[1:]
		s.dispatchedRebuild++
	}
	s.dispatched++
	return item, lane, true
}

func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// RecordCoalesced increments the coalesced-event counter surfaced in Stats.
func (s *Scheduler) RecordCoalesced() {
	s.mu.Lock()
	s.coalesced++
	s.mu.Unlock()
}

// RecordStaleDropped increments the stale-prepared-work counter.
func (s *Scheduler) RecordStaleDropped() {
	s.mu.Lock()
	s.staleDropped++
	s.mu.Unlock()
}

// Snapshot returns a point-in-time copy of scheduler stats.
func (s *Scheduler) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := make(map[DropReason]int64, len(s.dropped))
	for k, v := range s.dropped {
		dropped[k] = v
	}
	return Stats{
		LiveDepth:         len(s.live),
		RebuildDepth:      len(s.rebuild),
		Dispatched:        s.dispatched,
		DispatchedLive:    s.dispatchedLive,
		DispatchedRebuild: s.dispatchedRebuild,
		Dropped:           dropped,
		Coalesced:         s.coalesced,
		StaleDropped:      s.staleDropped,
	}
}
