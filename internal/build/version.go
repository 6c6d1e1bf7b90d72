package build

import (
	"fmt"
	"runtime"
)

// Version is set at build time via -ldflags "-X ... Version=...". It
// defaults to "dev" for local builds.
var Version = "dev"

// Commit is the VCS commit hash this binary was built from, set the same
// way as Version.
var Commit = "unknown"

// GoVersion returns the Go toolchain version this binary was built with.
func GoVersion() string {
	return runtime.Version()
}

// FullVersion renders a single human-readable version string combining
// Version, Commit, and the Go toolchain version, suitable for --version
// flags and start-up log lines.
func FullVersion() string {
	return fmt.Sprintf("%s (commit %s, %s)", Version, Commit, GoVersion())
}
