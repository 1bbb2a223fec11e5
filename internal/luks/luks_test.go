package luks

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/cmdrunner"
	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/terminal"
)

// fakeRunner scripts a response and records every request.
type fakeRunner struct {
	err      error
	requests []cmdrunner.Request
}

func (f *fakeRunner) Run(_ context.Context, req cmdrunner.Request) (cmdrunner.Result, error) {
	f.requests = append(f.requests, req)
	return cmdrunner.Result{}, f.err
}

func TestFormatProfileAndStdin(t *testing.T) {
	runner := &fakeRunner{}
	m := NewManager(runner, zerolog.Nop())
	pass := terminal.NewPassphrase([]byte("hunter2secret"))

	if err := m.Format(context.Background(), "/dev/sdb", pass); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	if len(runner.requests) != 1 {
		t.Fatalf("runner saw %d requests, want 1", len(runner.requests))
	}
	req := runner.requests[0]
	if req.Name != "cryptsetup" {
		t.Errorf("command = %q, want cryptsetup", req.Name)
	}

	wantArgs := []string{
		"luksFormat",
		"--type", "luks2",
		"--cipher", "aes-xts-plain64",
		"--key-size", "512",
		"--hash", "sha512",
		"--iter-time", "2000",
		"--pbkdf", "argon2id",
		"/dev/sdb",
	}
	if !reflect.DeepEqual(req.Args, wantArgs) {
		t.Errorf("args = %v, want %v", req.Args, wantArgs)
	}

	stdin, err := io.ReadAll(req.Stdin)
	if err != nil {
		t.Fatalf("read stdin: %v", err)
	}
	if got, want := string(stdin), "YES\nhunter2secret\nhunter2secret\n"; got != want {
		t.Errorf("stdin = %q, want %q", got, want)
	}
}

func TestOpenPipesPassphrase(t *testing.T) {
	runner := &fakeRunner{}
	m := NewManager(runner, zerolog.Nop())
	pass := terminal.NewPassphrase([]byte("hunter2secret"))

	if err := m.Open(context.Background(), "/dev/sdb", "secure_usb", pass); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	req := runner.requests[0]
	wantArgs := []string{"luksOpen", "/dev/sdb", "secure_usb"}
	if !reflect.DeepEqual(req.Args, wantArgs) {
		t.Errorf("args = %v, want %v", req.Args, wantArgs)
	}

	stdin, err := io.ReadAll(req.Stdin)
	if err != nil {
		t.Fatalf("read stdin: %v", err)
	}
	if got, want := string(stdin), "hunter2secret\n"; got != want {
		t.Errorf("stdin = %q, want %q", got, want)
	}
}

func TestOpenMapsBusyExitCode(t *testing.T) {
	runner := &fakeRunner{err: &cmdrunner.ToolError{Name: "cryptsetup", Code: 5}}
	m := NewManager(runner, zerolog.Nop())

	err := m.Open(context.Background(), "/dev/sdb", "secure_usb", terminal.NewPassphrase([]byte("hunter2secret")))

	var busy *DeviceBusyError
	if !errors.As(err, &busy) {
		t.Fatalf("Open() error = %v, want *DeviceBusyError", err)
	}
	if busy.Device != "/dev/sdb" {
		t.Errorf("Device = %q, want /dev/sdb", busy.Device)
	}
}

func TestOpenOtherFailurePassesThrough(t *testing.T) {
	toolErr := &cmdrunner.ToolError{Name: "cryptsetup", Code: 2, Stderr: []byte("No key available")}
	runner := &fakeRunner{err: toolErr}
	m := NewManager(runner, zerolog.Nop())

	err := m.Open(context.Background(), "/dev/sdb", "secure_usb", terminal.NewPassphrase([]byte("wrongpass123")))

	var busy *DeviceBusyError
	if errors.As(err, &busy) {
		t.Fatalf("Open() error = DeviceBusyError for exit code 2, want passthrough")
	}
	if !errors.Is(err, toolErr) {
		t.Errorf("Open() error = %v, want wrapped %v", err, toolErr)
	}
}

func TestCheckMapperFree(t *testing.T) {
	m := NewManager(&fakeRunner{}, zerolog.Nop())
	m.mapperDir = t.TempDir()

	if err := m.CheckMapperFree("secure_usb"); err != nil {
		t.Errorf("CheckMapperFree() = %v for unused name, want nil", err)
	}

	taken := filepath.Join(m.mapperDir, "secure_usb")
	if err := os.WriteFile(taken, nil, 0600); err != nil {
		t.Fatalf("create mapper node stand-in: %v", err)
	}

	err := m.CheckMapperFree("secure_usb")
	var conflict *NameConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("CheckMapperFree() = %v for taken name, want *NameConflictError", err)
	}
	if conflict.Path != taken {
		t.Errorf("conflict.Path = %q, want %q", conflict.Path, taken)
	}
}

func TestBackupHeader(t *testing.T) {
	runner := &fakeRunner{}
	m := NewManager(runner, zerolog.Nop())
	m.now = func() time.Time { return time.Date(2024, 3, 14, 9, 26, 53, 0, time.UTC) }

	dir := filepath.Join(t.TempDir(), "nested", "luks_backups")
	file, err := m.BackupHeader(context.Background(), "/dev/sdb", dir)
	if err != nil {
		t.Fatalf("BackupHeader() error = %v", err)
	}

	want := filepath.Join(dir, "sdb_20240314_092653.header")
	if file != want {
		t.Errorf("BackupHeader() = %q, want %q", file, want)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("backup directory not created: %v", err)
	}

	req := runner.requests[0]
	wantArgs := []string{"luksHeaderBackup", "/dev/sdb", "--header-backup-file", want}
	if !reflect.DeepEqual(req.Args, wantArgs) {
		t.Errorf("args = %v, want %v", req.Args, wantArgs)
	}
}

func TestBackupHeaderToolFailure(t *testing.T) {
	runner := &fakeRunner{err: &cmdrunner.ToolError{Name: "cryptsetup", Code: 1}}
	m := NewManager(runner, zerolog.Nop())

	if _, err := m.BackupHeader(context.Background(), "/dev/sdb", t.TempDir()); err == nil {
		t.Error("BackupHeader() error = nil, want tool failure")
	}
}

func TestCloseRequiresActiveMapping(t *testing.T) {
	runner := &fakeRunner{}
	m := NewManager(runner, zerolog.Nop())
	m.mapperDir = t.TempDir()

	if err := m.Close(context.Background(), "missing"); err == nil {
		t.Error("Close() error = nil for missing mapping, want failure")
	}
	if len(runner.requests) != 0 {
		t.Errorf("runner saw %d requests for missing mapping, want 0", len(runner.requests))
	}

	if err := os.WriteFile(filepath.Join(m.mapperDir, "secure_usb"), nil, 0600); err != nil {
		t.Fatalf("create mapper node stand-in: %v", err)
	}
	if err := m.Close(context.Background(), "secure_usb"); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	wantArgs := []string{"close", "secure_usb"}
	if !reflect.DeepEqual(runner.requests[0].Args, wantArgs) {
		t.Errorf("args = %v, want %v", runner.requests[0].Args, wantArgs)
	}
}
