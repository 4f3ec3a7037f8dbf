// Package version holds build metadata injected via ldflags:
//
//	-X github.com/kailas-cloud/assessdex/internal/version.Version=v1.2.0
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the metadata for the version command and startup logs.
func String() string {
	return fmt.Sprintf("assessdex %s (commit %s, built %s)", Version, Commit, Date)
}
