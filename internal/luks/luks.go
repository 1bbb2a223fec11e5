// Package luks drives cryptsetup: format, open, close, and header backup.
package luks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/cmdrunner"
	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/constants"
	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/terminal"
)

// formatArgs is the fixed LUKS2 profile every format uses.
var formatArgs = []string{
	"luksFormat",
	"--type", "luks2",
	"--cipher", "aes-xts-plain64",
	"--key-size", "512",
	"--hash", "sha512",
	"--iter-time", "2000",
	"--pbkdf", "argon2id",
}

const (
	// overwriteToken is the uppercase confirmation cryptsetup demands before
	// destroying the target device.
	overwriteToken = "YES"

	// exitCodeDeviceBusy is cryptsetup's exit code when the target device is
	// in use (still mounted, or already mapped).
	exitCodeDeviceBusy = 5

	// backupTimestampLayout names header backups down to the second, so
	// repeated formats of the same device never collide.
	backupTimestampLayout = "20060102_150405"
)

// Manager shells out to cryptsetup for every LUKS operation.
type Manager struct {
	run       cmdrunner.Runner
	log       zerolog.Logger
	mapperDir string
	now       func() time.Time
}

// NewManager returns a Manager backed by the given runner.
func NewManager(run cmdrunner.Runner, log zerolog.Logger) *Manager {
	return &Manager{
		run:       run,
		log:       log,
		mapperDir: constants.MapperDir,
		now:       time.Now,
	}
}

// MapperPath returns the device node a mapping is exposed at.
func (m *Manager) MapperPath(name string) string {
	return filepath.Join(m.mapperDir, name)
}

// CheckMapperFree fails with NameConflictError when the mapper name is
// already taken. Callers run this before any passphrase prompt or tool
// invocation.
func (m *Manager) CheckMapperFree(name string) error {
	path := m.MapperPath(name)
	if _, err := os.Stat(path); err == nil {
		return &NameConflictError{Name: name, Path: path}
	}
	return nil
}

// Format overwrites the device with a new LUKS2 header using the fixed
// profile. Irreversible; the caller owns every confirmation gate.
func (m *Manager) Format(ctx context.Context, device string, pass *terminal.Passphrase) error {
	m.log.Debug().Str("device", device).Msg("formatting LUKS2 container")

	args := append(append([]string{}, formatArgs...), device)
	_, err := m.run.Run(ctx, cmdrunner.Request{
		Name:  "cryptsetup",
		Args:  args,
		Stdin: formatStdin(pass),
	})
	if err != nil {
		return fmt.Errorf("luksFormat %s: %w", device, err)
	}
	return nil
}

// Open maps the LUKS device under the given name, piping the passphrase.
// cryptsetup's busy exit code becomes DeviceBusyError.
func (m *Manager) Open(ctx context.Context, device, name string, pass *terminal.Passphrase) error {
	m.log.Debug().Str("device", device).Str("mapper", name).Msg("opening LUKS container")

	_, err := m.run.Run(ctx, cmdrunner.Request{
		Name:  "cryptsetup",
		Args:  []string{"luksOpen", device, name},
		Stdin: io.MultiReader(pass.Reader(), strings.NewReader("\n")),
	})
	if err != nil {
		var toolErr *cmdrunner.ToolError
		if errors.As(err, &toolErr) && toolErr.Code == exitCodeDeviceBusy {
			return &DeviceBusyError{Device: device}
		}
		return fmt.Errorf("luksOpen %s: %w", device, err)
	}
	return nil
}

// Close tears down an open mapping.
func (m *Manager) Close(ctx context.Context, name string) error {
	path := m.MapperPath(name)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no active mapping at %s", path)
	}

	if _, err := m.run.Run(ctx, cmdrunner.Request{
		Name: "cryptsetup",
		Args: []string{"close", name},
	}); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

// BackupHeader writes a copy of the device's LUKS header into dir, creating
// the directory if needed. The filename carries the device base name and a
// timestamp, so existing backups are never overwritten.
func (m *Manager) BackupHeader(ctx context.Context, device, dir string) (string, error) {
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	file := filepath.Join(dir, fmt.Sprintf("%s_%s.header",
		filepath.Base(device), m.now().Format(backupTimestampLayout)))

	if _, err := m.run.Run(ctx, cmdrunner.Request{
		Name: "cryptsetup",
		Args: []string{"luksHeaderBackup", device, "--header-backup-file", file},
	}); err != nil {
		return "", fmt.Errorf("luksHeaderBackup %s: %w", device, err)
	}

	return file, nil
}

// formatStdin assembles cryptsetup's interactive format protocol: the
// overwrite token, then the passphrase twice (entry and confirmation).
func formatStdin(pass *terminal.Passphrase) io.Reader {
	return io.MultiReader(
		strings.NewReader(overwriteToken+"\n"),
		pass.Reader(),
		strings.NewReader("\n"),
		pass.Reader(),
		strings.NewReader("\n"),
	)
}
