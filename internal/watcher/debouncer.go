// Package watcher turns raw filesystem notifications into the
// debounced queue.WorkItem stream internal/pipeline consumes, grounded
// on the teacher's internal/watcher (HybridWatcher + Debouncer), with
// coalescing keyed on queue.ItemType instead of the teacher's Operation
// enum so the output plugs directly into Pipeline.OnFilesystemEvent.
package watcher

import (
	"log/slog"
	"sync"
	"time"

	"github.com/theroutercompany/betterspotlight/internal/queue"
)

// Debouncer coalesces rapid events for the same path within window,
// emitting one queue.WorkItem per path once things settle. Coalescing
// rules mirror the teacher's Debouncer:
//   - NewFile + ModifiedContent = NewFile (still new)
//   - NewFile + Delete = nothing (never really existed)
//   - ModifiedContent + Delete = Delete (gone)
//   - Delete + NewFile = ModifiedContent (replaced)
type Debouncer struct {
	window time.Duration
	mu     sync.Mutex
	pending map[string]*pendingItem
	timer   *time.Timer
	output  chan queue.WorkItem
	stopped bool
}

type pendingItem struct {
	item    queue.WorkItem
	firstOp queue.ItemType
}

// NewDebouncer returns a Debouncer that coalesces within window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingItem),
		output:  make(chan queue.WorkItem, 256),
	}
}

// Add records one raw event, coalescing it with any pending event for
// the same path, and (re)schedules a flush after window.
func (d *Debouncer) Add(item queue.WorkItem) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if existing, ok := d.pending[item.Path]; ok {
		coalesced := coalesce(existing.firstOp, item)
		if coalesced == nil {
			delete(d.pending, item.Path)
		} else {
			existing.item = *coalesced
		}
	} else {
		d.pending[item.Path] = &pendingItem{item: item, firstOp: item.Type}
	}
	d.scheduleFlush()
}

func coalesce(firstOp queue.ItemType, next queue.WorkItem) *queue.WorkItem {
	switch firstOp {
	case queue.NewFile:
		switch next.Type {
		case queue.ModifiedContent:
			kept := next
			kept.Type = queue.NewFile
			return &kept
		case queue.Delete:
			return nil
		default:
			return &next
		}
	case queue.ModifiedContent:
		if next.Type == queue.Delete {
			return &next
		}
		return &next
	case queue.Delete:
		if next.Type == queue.NewFile {
			replaced := next
			replaced.Type = queue.ModifiedContent
			return &replaced
		}
		return &next
	default:
		return &next
	}
}

func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	for path, pe := range d.pending {
		select {
		case d.output <- pe.item:
		default:
			slog.Warn("watcher debouncer output full, dropping event", slog.String("path", path))
		}
	}
	d.pending = make(map[string]*pendingItem)
}

// Output is the channel of debounced, coalesced work items.
func (d *Debouncer) Output() <-chan queue.WorkItem {
	return d.output
}

// Stop stops pending timers and closes Output. Safe to call once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
