package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/theroutercompany/betterspotlight/internal/pathrules"
	"github.com/theroutercompany/betterspotlight/internal/queue"
)

// DefaultDebounceWindow matches the teacher's watcher default.
const DefaultDebounceWindow = 200 * time.Millisecond

// FSWatcher watches a set of root directories with fsnotify and emits
// debounced queue.WorkItem values to onEvent, one per settled path.
// Newly created directories are added to the watch set and trigger a
// RescanDirectory item so the pipeline picks up pre-existing children.
type FSWatcher struct {
	fsw       *fsnotify.Watcher
	rules     *pathrules.PathRules
	debouncer *Debouncer
	onEvent   func(queue.WorkItem)
	logger    *slog.Logger

	mu       sync.Mutex
	watching map[string]bool
	stopped  bool
}

// NewFSWatcher creates an FSWatcher. onEvent is invoked from a single
// internal goroutine, so it must not block.
func NewFSWatcher(rules *pathrules.PathRules, onEvent func(queue.WorkItem), logger *slog.Logger) (*FSWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FSWatcher{
		fsw:       fsw,
		rules:     rules,
		debouncer: NewDebouncer(DefaultDebounceWindow),
		onEvent:   onEvent,
		logger:    logger,
		watching:  make(map[string]bool),
	}, nil
}

// Start recursively watches every root and runs until ctx is cancelled
// or Stop is called.
func (w *FSWatcher) Start(ctx context.Context, roots []string) error {
	for _, root := range roots {
		if err := w.addRecursive(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
	}

	go w.forwardDebounced(ctx)
	go w.run(ctx)
	return nil
}

func (w *FSWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.rules != nil && w.rules.Validate(path+string(os.PathSeparator), 0) == pathrules.Exclude {
			return filepath.SkipDir
		}
		return w.addWatch(path)
	})
}

func (w *FSWatcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watching[path] {
		return nil
	}
	if err := w.fsw.Add(path); err != nil {
		return err
	}
	w.watching[path] = true
	return nil
}

func (w *FSWatcher) run(ctx context.Context) {
	defer w.debouncer.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fsnotify error", slog.String("error", err.Error()))
		}
	}
}

func (w *FSWatcher) handleEvent(event fsnotify.Event) {
	if w.rules != nil && w.rules.Validate(event.Name, 0) == pathrules.Exclude {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("watch new directory", slog.String("path", event.Name), slog.String("error", err.Error()))
			}
			w.debouncer.Add(queue.WorkItem{Type: queue.RescanDirectory, Path: event.Name})
			return
		}
		w.debouncer.Add(queue.WorkItem{Type: queue.NewFile, Path: event.Name})
	case event.Op&fsnotify.Write != 0:
		w.debouncer.Add(queue.WorkItem{Type: queue.ModifiedContent, Path: event.Name})
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.mu.Lock()
		delete(w.watching, event.Name)
		w.mu.Unlock()
		w.debouncer.Add(queue.WorkItem{Type: queue.Delete, Path: event.Name})
	}
}

func (w *FSWatcher) forwardDebounced(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.onEvent(item)
		}
	}
}

// Stop closes the fsnotify watcher. Safe to call more than once.
func (w *FSWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	return w.fsw.Close()
}
