// Package version holds build information stamped in with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Build-time variables set via ldflags
var (
	// Version is the release tag or "dev".
	Version = "dev"

	// GitCommit is the short git commit SHA
	GitCommit = "unknown"

	BuildDate = "unknown"
)

// Info is the version block written into reports.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	GitCommit string `json:"git_commit" yaml:"git_commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

func GetInfo() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// String formats as "v1.2.0 (commit: abc1234, built: 2026-01-02)".
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate)
}

// UserAgent identifies the harness to the todo API.
func UserAgent() string {
	return "todo-e2e/" + Version
}
