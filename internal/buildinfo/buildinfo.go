// Package buildinfo holds build-time version information injected via
// ldflags, for the CLI's "version" command. Separate from internal/version,
// which implements the version *comparator* (C1) — these two packages
// answer different questions despite the similar name upstream.
//
// Variables are injected at build time via ldflags:
//
//	go build -ldflags "-X .../internal/buildinfo.Version=0.1.0 -X .../internal/buildinfo.Commit=abc1234"
package buildinfo

import "fmt"

var (
	// Version is the semantic version (e.g., "0.1.0").
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// Date is the build timestamp in ISO 8601 format.
	Date = "unknown"
)

// Full returns a human-readable version string.
func Full() string {
	return fmt.Sprintf("pluginsort %s (commit: %s, built: %s)", Version, short(Commit), Date)
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
