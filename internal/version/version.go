// Package version exposes build-time version information for hivemond.
package version

import "fmt"

// Set via -ldflags at build time:
//
//	go build -ldflags "-X .../internal/version.Version=1.2.0 -X .../internal/version.Commit=abcdef"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns a human-readable one-line version description.
func Info() string {
	return fmt.Sprintf("hivemond %s (commit %s, built %s)", Version, Commit, Date)
}

// Map returns version fields for JSON health responses.
func Map() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	}
}
