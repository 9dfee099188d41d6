// Package version provides build version information for the planner.
// Version variables can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/planweave/planweave/version.version=1.0.0"
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

const (
	// devVersion is the default version when not set via ldflags
	devVersion = "dev"
	// shortCommitLen is the length of the short commit hash
	shortCommitLen = 7
	// vcsRevisionKey is the build info key for git commit
	vcsRevisionKey = "vcs.revision"
	// vcsModifiedKey is the build info key for dirty state
	vcsModifiedKey = "vcs.modified"
)

// Build-time variables - can be overridden with -ldflags
var (
	version   = devVersion
	gitCommit = ""
	buildDate = ""
)

// GetVersion returns the current version string.
// Falls back to build info from go modules if version is "dev".
func GetVersion() string {
	if version != devVersion {
		return version
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}

	return devVersion
}

// getCommitFromBuildInfo extracts the git commit hash from build info.
func getCommitFromBuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}

	for _, setting := range info.Settings {
		if setting.Key == vcsRevisionKey && setting.Value != "" {
			return setting.Value[:min(shortCommitLen, len(setting.Value))]
		}
	}
	return ""
}

// isDirtyFromBuildInfo checks if the build has uncommitted changes.
func isDirtyFromBuildInfo() bool {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return false
	}

	for _, setting := range info.Settings {
		if setting.Key == vcsModifiedKey && setting.Value == "true" {
			return true
		}
	}
	return false
}

// GetVersionInfo returns detailed version information for --version output.
func GetVersionInfo() string {
	var b strings.Builder

	fmt.Fprintf(&b, "planweave version %s", GetVersion())

	commit := gitCommit
	if commit == "" {
		commit = getCommitFromBuildInfo()
	}
	if commit != "" {
		fmt.Fprintf(&b, "\ncommit: %s", commit)
	}
	if buildDate != "" {
		fmt.Fprintf(&b, "\nbuilt: %s", buildDate)
	}

	return b.String()
}

// GetBuildInfo returns version details as structured slog attributes,
// useful for including version info in startup log messages.
func GetBuildInfo() []any {
	attrs := []any{
		"version", GetVersion(),
	}

	commit := gitCommit
	if commit == "" {
		commit = getCommitFromBuildInfo()
	}
	if commit != "" {
		attrs = append(attrs, "commit", commit)
	}
	if gitCommit == "" && isDirtyFromBuildInfo() {
		attrs = append(attrs, "dirty", true)
	}
	if buildDate != "" {
		attrs = append(attrs, "built", buildDate)
	}

	return attrs
}
