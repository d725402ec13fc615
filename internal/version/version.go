// Package version reports build metadata. Release builds set the variables
// with -ldflags; other builds fall back to the VCS stamp the Go toolchain
// embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const unknown = "unknown"

var (
	// Version is the application version, set via ldflags during build.
	Version = "dev"
	// GitCommit is the git commit hash, set via ldflags during build.
	GitCommit = unknown
	// BuildDate is the build timestamp, set via ldflags during build.
	BuildDate = unknown
	// BuildID is the build identifier, set via ldflags during build.
	BuildID = unknown
)

// Info contains version and build metadata.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	BuildID   string `json:"build_id"`
	GoVersion string `json:"go_version"`
	Compiler  string `json:"compiler"`
	Platform  string `json:"platform"`
}

// Get returns version and build information.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		BuildID:   BuildID,
		GoVersion: runtime.Version(),
		Compiler:  runtime.Compiler,
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		applyBuildSettings(&info, bi.Settings)
	}
	return info
}

// applyBuildSettings fills the commit and date ldflags left unset from the
// vcs.* build settings.
func applyBuildSettings(info *Info, settings []debug.BuildSetting) {
	var revision, vcsTime string
	var modified bool
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			vcsTime = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}

	if info.GitCommit == unknown && revision != "" {
		info.GitCommit = revision[:min(len(revision), 7)]
		if modified {
			info.GitCommit += "-dirty"
		}
	}
	if info.BuildDate == unknown && vcsTime != "" {
		info.BuildDate = vcsTime
	}
}

// String returns the version with its commit and build date, as printed
// by --version.
func String() string {
	info := Get()
	return fmt.Sprintf("%s (commit %s, built %s)", info.Version, info.GitCommit, info.BuildDate)
}
