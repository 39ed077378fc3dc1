package pathrules

import (
	"bufio"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// BsignoreLoader watches `<home>/.bsignore` and pushes parsed patterns into
// a PathRules instance whenever the file changes.
type BsignoreLoader struct {
	path    string
	rules   *PathRules
	watcher *fsnotify.Watcher

	loaded        atomic.Bool
	patternCount  atomic.Int64
	lastLoadedMs  atomic.Int64
	onReload      func(loaded bool, patternCount int, lastLoadedAtMs int64)
}

// NewBsignoreLoader creates a loader for the given path (typically
// filepath.Join(home, ".bsignore")) bound to rules.
func NewBsignoreLoader(path string, rules *PathRules) *BsignoreLoader {
	return &BsignoreLoader{path: path, rules: rules}
}

// OnReload registers a callback invoked after every (re)load attempt,
// surfaced by callers as the bsignoreReloaded notification.
func (l *BsignoreLoader) OnReload(fn func(loaded bool, patternCount int, lastLoadedAtMs int64)) {
	l.onReload = fn
}

// Load reads the ignore file once, if present. Missing files are not an
// error; they simply yield zero patterns.
func (l *BsignoreLoader) Load() error {
	patterns, err := parseBsignore(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.rules.SetUserPatterns(nil)
			l.markLoaded(false, 0)
			return nil
		}
		return err
	}
	l.rules.SetUserPatterns(patterns)
	l.markLoaded(true, len(patterns))
	return nil
}

func (l *BsignoreLoader) markLoaded(loaded bool, count int) {
	l.loaded.Store(loaded)
	l.patternCount.Store(int64(count))
	now := time.Now().UnixMilli()
	l.lastLoadedMs.Store(now)
	if l.onReload != nil {
		l.onReload(loaded, count, now)
	}
}

// Watch starts watching the ignore file's directory for changes and
// reloads automatically. The returned stop function closes the watcher.
func (l *BsignoreLoader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	l.watcher = w

	dir := parentDir(l.path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Name == l.path && (ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) != 0) {
					_ = l.Load()
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = w.Close()
	}, nil
}

func (l *BsignoreLoader) Loaded() bool        { return l.loaded.Load() }
func (l *BsignoreLoader) PatternCount() int   { return int(l.patternCount.Load()) }
func (l *BsignoreLoader) LastLoadedAtMs() int64 { return l.lastLoadedMs.Load() }
func (l *BsignoreLoader) Path() string        { return l.path }

func parseBsignore(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}

func parentDir(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	return path[:idx]
}
