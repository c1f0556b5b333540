// Package platform holds the launcher's frozen view of the host: which
// operating system and CPU it runs on, what the tool and its packages are
// called on this host, and where binaries are stored. A Config is built once
// at startup and handed to every component by value.
package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform is an operating system and CPU architecture pair, spelled the
// way the Go toolchain spells them.
type Platform struct {
	OS   string
	Arch string
}

// Current returns the platform the process is running on.
func Current() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// ID returns the platform identifier used as a settings key, for example
// "linux-x64" or "win32-arm64".
func (p Platform) ID() string {
	return p.settingsOS() + "-" + p.settingsArch()
}

func (p Platform) settingsOS() string {
	if p.OS == "windows" {
		return "win32"
	}
	return p.OS
}

func (p Platform) settingsArch() string {
	if p.Arch == "amd64" {
		return "x64"
	}
	return p.Arch
}

// ArchToken is the normalized architecture used in asset and package names.
func (p Platform) ArchToken() (string, error) {
	switch p.Arch {
	case "amd64":
		return "x86_64", nil
	case "arm64":
		return "aarch64", nil
	default:
		return "", fmt.Errorf("unsupported architecture %q", p.Arch)
	}
}

// OSToken is the target triple suffix used in release asset names.
func (p Platform) OSToken() (string, error) {
	switch p.OS {
	case "darwin":
		return "apple-darwin", nil
	case "linux":
		return "unknown-linux-gnu", nil
	case "windows":
		return "pc-windows-msvc", nil
	default:
		return "", fmt.Errorf("unsupported operating system %q", p.OS)
	}
}

// Triple returns "{arch}-{os}", for example "aarch64-apple-darwin".
func (p Platform) Triple() (string, error) {
	arch, err := p.ArchToken()
	if err != nil {
		return "", err
	}
	osToken, err := p.OSToken()
	if err != nil {
		return "", err
	}
	return arch + "-" + osToken, nil
}

// Supported reports whether releases are published for this platform.
func (p Platform) Supported() bool {
	_, err := p.Triple()
	return err == nil
}

// Executable appends the platform's executable extension to base.
func (p Platform) Executable(base string) string {
	if p.OS == "windows" && !strings.HasSuffix(base, ".exe") {
		return base + ".exe"
	}
	return base
}
