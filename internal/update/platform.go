package update

import (
	"fmt"
	"runtime"
)

// Platform describes the current system platform
type Platform struct {
	OS   string // Operating system (windows, darwin, linux)
	Arch string // Architecture (amd64, arm64)
}

// Detect returns the current platform (OS and architecture)
func Detect() Platform {
	return Platform{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

// String returns "os/arch"
func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// IsWindows returns true on Windows
func (p Platform) IsWindows() bool {
	return p.OS == "windows"
}

// UserAgent returns the User-Agent sent to the release origin
// e.g., "gwupdate/1.4.0 (windows/amd64)"
func (p Platform) UserAgent(version string) string {
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf("gwupdate/%s (%s)", version, p)
}
