// Package version carries build-time identity for betterspotlightd.
package version

import (
	"fmt"
	"runtime"
)

// Version is set via -ldflags at build time; defaults to "dev" for local builds.
var Version = "dev"

var (
	// Commit is the git commit hash, set via -ldflags.
	Commit = "unknown"
	// Date is the RFC3339 build timestamp, set via -ldflags.
	Date = "unknown"
	// GoVersion is captured at runtime, not build time.
	GoVersion = runtime.Version()
)

// BuildInfo is the structured form of version information, used for
// `betterspotlightd version --json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns the full human-readable version line.
func String() string {
	return fmt.Sprintf("betterspotlightd %s (commit: %s, built: %s, go: %s)", Version, Commit, Date, GoVersion)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// Info returns structured build information.
func Info() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
