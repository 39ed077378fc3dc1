package daemon

import (
	"context"
	"fmt"
	"log/slog"
)

// Daemon owns the instance lock, PID file, and RPC server lifecycle for
// one data directory.
type Daemon struct {
	cfg    Config
	engine Engine
	logger *slog.Logger

	lock   *InstanceLock
	pid    *PIDFile
	server *Server
}

// NewDaemon prepares a Daemon; it does not yet hold the instance lock or
// listen on the socket.
func NewDaemon(cfg Config, engine Engine, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		cfg:    cfg,
		engine: engine,
		logger: logger,
		pid:    NewPIDFile(cfg.PIDPath),
	}, nil
}

// Start acquires the instance lock, writes the PID file, and serves
// until ctx is cancelled. Returns an error immediately if another daemon
// already owns cfg's data directory.
func (d *Daemon) Start(ctx context.Context) error {
	lock, ok, err := AcquireInstanceLock(d.cfg)
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another daemon already owns this data directory (lock: %s)", d.cfg.LockPath)
	}
	d.lock = lock
	defer func() {
		_ = d.lock.Release()
		_ = d.pid.Remove()
	}()

	if err := d.pid.Write(); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}

	d.server = NewServer(d.cfg.SocketPath, d.engine, d.logger)
	return d.server.ListenAndServe(ctx)
}

// Close stops the server if it is running.
func (d *Daemon) Close() error {
	if d.server != nil {
		return d.server.Close()
	}
	return nil
}
