// Package preflight verifies the environment before the interactive flow
// touches any device: supported OS, root privileges, required tools.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// OS represents a detected operating system.
type OS string

const (
	Linux   OS = "linux"
	MacOS   OS = "darwin"
	Unknown OS = "unknown"
)

// Detect returns the current operating system.
func Detect() OS {
	switch runtime.GOOS {
	case "linux":
		return Linux
	case "darwin":
		return MacOS
	default:
		return Unknown
	}
}

// RequireLinux fails unless running on Linux; lsblk, parted, and cryptsetup
// have no counterparts elsewhere.
func RequireLinux() error {
	if Detect() != Linux {
		return fmt.Errorf("unsupported platform %q: this tool requires Linux", runtime.GOOS)
	}
	return nil
}

// RequireRoot fails unless the effective UID is root. cryptsetup and parted
// both need it.
func RequireRoot() error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("must be run as root (try: sudo usbluks)")
	}
	return nil
}

// RequireTools fails when any of the named binaries cannot be resolved on
// PATH, listing all missing ones at once.
func RequireTools(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tools not found on PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}
