// Package daemon runs betterspotlightd as a long-lived background
// process: a single-instance guard (github.com/gofrs/flock), a Unix
// socket JSON-RPC server exposing search/status/rebuild, and a client
// the CLI uses to talk to an already-running instance. Grounded on the
// teacher's internal/daemon (same config/pidfile/protocol/server/client
// split), with the PID-file existence check replaced by a real
// cross-process flock so two daemons can never win a race on the same
// data directory.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds the daemon's socket, lock, and timing parameters.
type Config struct {
	// SocketPath is the Unix domain socket the server listens on and the
	// client dials.
	SocketPath string

	// LockPath is the flock file proving single-instance ownership of
	// DataDir.
	LockPath string

	// PIDPath records the owning process id for `daemon stop`.
	PIDPath string

	// Timeout bounds client-daemon round trips.
	Timeout time.Duration

	// ShutdownGracePeriod is set by DefaultConfig but not read by Daemon or
	// Server; their Close methods close the listener at once without
	// waiting for in-flight requests.
	ShutdownGracePeriod time.Duration
}

// DefaultConfig derives socket/lock/pid paths under dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		SocketPath:          filepath.Join(dataDir, "daemon.sock"),
		LockPath:            filepath.Join(dataDir, "daemon.lock"),
		PIDPath:             filepath.Join(dataDir, "daemon.pid"),
		Timeout:             30 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// Validate checks that required paths and durations are set.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.LockPath == "" {
		return fmt.Errorf("lock path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// EnsureDir creates the directories for the socket, lock, and PID files.
func (c Config) EnsureDir() error {
	for _, p := range []string{c.SocketPath, c.LockPath, c.PIDPath} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("create daemon directory: %w", err)
		}
	}
	return nil
}
