package logging

import (
	"log/slog"
)

// SetupStdioMode initializes logging for the MCP stdio transport.
//
// The stdio transport requires stdout to carry JSON-RPC frames exclusively;
// any stray write to stdout (or stderr, which some clients also capture)
// corrupts the stream and the client sees "failed to connect". This setup
// logs only to file, at the requested level, with file-only output forced
// regardless of the config passed in.
func SetupStdioMode(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	slog.Info("stdio transport logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level),
		slog.Bool("stderr_disabled", true))

	return cleanup, nil
}
