// Package logging provides opt-in file-based logging with rotation for the
// indexing daemon. When --debug is set, comprehensive logs are written to
// ~/.betterspotlight/logs/ for troubleshooting.
//
// Without --debug the CLI does not call Setup, and records go to slog's
// default logger on stderr; no log file is written.
package logging
