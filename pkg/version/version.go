package version

import (
	"fmt"
	"runtime"
	"time"
)

// Version information - using semantic versioning
const (
	Major         = 0
	Minor         = 1
	Patch         = 0
	PreRelease    = "" // e.g., "alpha", "beta", "rc1"
	BuildMetadata = ""
	SDKName       = "dApp Sync SDK"
)

// Set at link time: -ldflags "-X .../pkg/version.GitCommit=..."
var (
	GitCommit = ""
	BuildDate = ""
)

// Version returns the semantic version string
func Version() string {
	version := fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
	if PreRelease != "" {
		version += "-" + PreRelease
	}
	if BuildMetadata != "" {
		version += "+" + BuildMetadata
	}
	return version
}

// BuildInfo contains comprehensive build information
type BuildInfo struct {
	Version    string `json:"version"`
	Major      int    `json:"major"`
	Minor      int    `json:"minor"`
	Patch      int    `json:"patch"`
	PreRelease string `json:"pre_release,omitempty"`
	GitCommit  string `json:"git_commit,omitempty"`
	BuildDate  string `json:"build_date,omitempty"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
	SDKName    string `json:"sdk_name"`
}

// GetBuildInfo returns complete build information
func GetBuildInfo() *BuildInfo {
	buildDate := BuildDate
	if buildDate == "" {
		buildDate = time.Now().Format(time.RFC3339)
	}

	return &BuildInfo{
		Version:    Version(),
		Major:      Major,
		Minor:      Minor,
		Patch:      Patch,
		PreRelease: PreRelease,
		GitCommit:  GitCommit,
		BuildDate:  buildDate,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		SDKName:    SDKName,
	}
}

// GetVersionString returns the version with a short commit, if known.
func GetVersionString() string {
	if len(GitCommit) >= 7 {
		return fmt.Sprintf("%s (%s)", Version(), GitCommit[:7])
	}
	return Version()
}

// GetFullVersionString returns a complete version string with build info
func GetFullVersionString() string {
	info := GetBuildInfo()
	result := fmt.Sprintf("%s v%s", info.SDKName, info.Version)
	if len(info.GitCommit) >= 7 {
		result += fmt.Sprintf(" (commit: %s)", info.GitCommit[:7])
	}
	result += fmt.Sprintf(" (built: %s)", info.BuildDate)
	result += fmt.Sprintf(" (go: %s, platform: %s)", info.GoVersion, info.Platform)
	return result
}
