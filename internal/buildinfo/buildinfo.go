// Package buildinfo holds build metadata injected at link time.
package buildinfo

var (
	// Version is the release version, overridden via -ldflags.
	Version = "dev"

	// Commit is the VCS revision the binary was built from.
	Commit = "unknown"

	// BuildDate is the UTC build timestamp.
	BuildDate = "unknown"
)
