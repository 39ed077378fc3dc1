package daemon

import (
	"fmt"

	"github.com/gofrs/flock"
)

// InstanceLock guards a data directory against more than one daemon
// process owning it at a time, using an advisory OS file lock rather
// than a PID-file existence check (which races: the file can outlive a
// crashed process, or be read mid-write).
type InstanceLock struct {
	fl *flock.Flock
}

// AcquireInstanceLock attempts to take an exclusive, non-blocking lock on
// cfg.LockPath. ok is false (with a nil error) if another process
// already holds it.
func AcquireInstanceLock(cfg Config) (lock *InstanceLock, ok bool, err error) {
	if err := cfg.EnsureDir(); err != nil {
		return nil, false, err
	}
	fl := flock.New(cfg.LockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return nil, false, nil
	}
	return &InstanceLock{fl: fl}, true, nil
}

// Release gives up the lock and removes the backing lock file's hold; the
// file itself is left in place for the next acquirer.
func (l *InstanceLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
