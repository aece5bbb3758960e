// Package version reports the build version of bulkload.
package version

import "runtime/debug"

// These are set at build time with -ldflags "-X github.com/rshade/bulkload/pkg/version.version=...".
var (
	version = "dev" //nolint:gochecknoglobals // set by ldflags
	commit  = ""    //nolint:gochecknoglobals // set by ldflags
	date    = ""    //nolint:gochecknoglobals // set by ldflags
)

// GetVersion returns the version string, falling back to the module version
// recorded in the build info when ldflags did not set one.
func GetVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

// GetCommit returns the git commit the binary was built from, if known.
func GetCommit() string { return commit }

// GetBuildDate returns the build timestamp, if known.
func GetBuildDate() string { return date }
