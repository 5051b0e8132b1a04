// Package version provides build version information for the application.
// It is separate from cli so the serving side can log it without importing
// the command tree.
package version

import "fmt"

// Version is the build version string, set by ldflags during build.
// Format: vX.Y.Z or vX.Y.Z-dev for development builds.
var Version = "v0.3.0-dev"

// BuildTime is the build timestamp, set by ldflags during build.
var BuildTime = "unknown"

// String returns the version line shown by --version and logged at startup.
func String() string {
	return fmt.Sprintf("%s (%s)", Version, BuildTime)
}
