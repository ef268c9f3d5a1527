// Package version holds build information injected with ldflags:
//
//	-ldflags "-X contentaugment/internal/version.version=v1.0.0 -X contentaugment/internal/version.commit=abc123 -X contentaugment/internal/version.buildTime=2025-01-01T00:00:00Z"
package version

import (
	"fmt"
	"io"
	"strings"
	"time"
)

//nolint:gochecknoglobals // Required for build-time injection via ldflags.
var (
	version   string
	commit    string
	buildTime string
)

// ApplicationName is the name of the application displayed in version output.
const ApplicationName = "contentaugment"

// Default values used when version information is not available.
const (
	DefaultVersion   = "dev"
	DefaultCommit    = "unknown"
	DefaultBuildTime = "unknown"
)

// VersionInfo is the resolved build information.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// GetVersion returns the build information with defaults for anything unset.
func GetVersion() *VersionInfo {
	return &VersionInfo{
		Version:   withDefault(version, DefaultVersion),
		Commit:    withDefault(commit, DefaultCommit),
		BuildTime: withDefault(buildTime, DefaultBuildTime),
	}
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// FormatFull returns the multi-line version banner.
func (vi *VersionInfo) FormatFull() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", ApplicationName)
	fmt.Fprintf(&b, "Version: %s\n", vi.Version)
	fmt.Fprintf(&b, "Commit: %s\n", vi.Commit)
	fmt.Fprintf(&b, "Built: %s\n", vi.BuildTime)
	return b.String()
}

// Write prints either the bare version or the full banner.
func (vi *VersionInfo) Write(w io.Writer, short bool) error {
	var err error
	if short {
		_, err = fmt.Fprintln(w, vi.Version)
	} else {
		_, err = fmt.Fprint(w, vi.FormatFull())
	}
	return err
}

// IsDevelopment reports whether no version was injected.
func (vi *VersionInfo) IsDevelopment() bool {
	return vi.Version == DefaultVersion
}

// GetBuildTime parses BuildTime as RFC3339, returning zero when it is unset or malformed.
func (vi *VersionInfo) GetBuildTime() time.Time {
	t, err := time.Parse(time.RFC3339, vi.BuildTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// UserAgent identifies outbound provider requests.
func UserAgent() string {
	return ApplicationName + "/" + GetVersion().Version
}

// SetBuildVars overrides the injected values. Tests use it.
func SetBuildVars(ver, com, bt string) {
	version = ver
	commit = com
	buildTime = bt
}

// ResetBuildVars clears the injected values.
func ResetBuildVars() {
	SetBuildVars("", "", "")
}
