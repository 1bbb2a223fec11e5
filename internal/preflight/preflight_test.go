package preflight

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestDetect(t *testing.T) {
	got := Detect()
	switch runtime.GOOS {
	case "linux":
		if got != Linux {
			t.Errorf("Detect() = %q, want %q", got, Linux)
		}
	case "darwin":
		if got != MacOS {
			t.Errorf("Detect() = %q, want %q", got, MacOS)
		}
	default:
		if got != Unknown {
			t.Errorf("Detect() = %q, want %q", got, Unknown)
		}
	}
}

func TestRequireRoot(t *testing.T) {
	err := RequireRoot()
	if os.Geteuid() == 0 {
		if err != nil {
			t.Errorf("RequireRoot() = %v as root, want nil", err)
		}
	} else if err == nil {
		t.Error("RequireRoot() = nil as non-root, want error")
	}
}

func TestRequireTools(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "lsblk")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", dir)

	if err := RequireTools("lsblk"); err != nil {
		t.Errorf("RequireTools(lsblk) = %v with stub present, want nil", err)
	}

	err := RequireTools("lsblk", "parted", "cryptsetup")
	if err == nil {
		t.Fatal("RequireTools() = nil with missing tools, want error")
	}
	for _, name := range []string{"parted", "cryptsetup"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not name missing tool %q", err, name)
		}
	}
	if strings.Contains(err.Error(), "lsblk") {
		t.Errorf("error %q names present tool lsblk", err)
	}
}
