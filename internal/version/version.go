// Package version carries build metadata injected via -ldflags.
package version

import "fmt"

var (
	// Version is the release version of the engine.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String returns a single-line description for startup logs and the
// -version flag.
func String() string {
	return fmt.Sprintf("hotspot.report %s (%s, built %s)", Version, GitSHA, BuildTime)
}
