// Package flow drives the interactive session: pick a removable device,
// classify it, and gate the encrypt, re-encrypt, and open operations.
package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/catalog"
	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/constants"
	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/luks"
	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/terminal"
)

// Confirmation sentences typed verbatim before a destructive operation.
const (
	encryptSentence   = "I understand and want to encrypt this device"
	reEncryptSentence = "I understand and want to re-encrypt this device"
)

var (
	warnColor = color.New(color.FgRed, color.Bold)
	noteColor = color.New(color.FgYellow)
	okColor   = color.New(color.FgGreen)
)

var errEmptyMapperName = errors.New("mapper name cannot be empty")

// UnsupportedTableError reports a device whose partition table rules out
// new encryption.
type UnsupportedTableError struct {
	Device string
	Kind   catalog.TableKind
}

func (e *UnsupportedTableError) Error() string {
	return fmt.Sprintf("%s has a %s partition table: only gpt is supported", e.Device, e.Kind)
}

// Catalog enumerates and probes block devices.
type Catalog interface {
	ListCandidates(ctx context.Context) ([]catalog.Device, error)
	DetectEncryption(ctx context.Context, device string) bool
	PartitionTable(ctx context.Context, device string) catalog.TableKind
}

// LUKS formats, opens, and backs up encrypted containers.
type LUKS interface {
	MapperPath(name string) string
	CheckMapperFree(name string) error
	Format(ctx context.Context, device string, pass *terminal.Passphrase) error
	Open(ctx context.Context, device, name string, pass *terminal.Passphrase) error
	BackupHeader(ctx context.Context, device, dir string) (string, error)
}

// Prompter collects operator input.
type Prompter interface {
	SelectDevice(entries []string) (int, bool, error)
	ReadLine(prompt string) (string, error)
	ReadSecret(prompt string) (*terminal.Passphrase, error)
}

// Progress shows activity while a tool call is in flight.
type Progress interface {
	Start(message string)
	Stop()
}

// state names one node of the session's decision graph. Every transition
// method returns the node to visit next.
type state int

const (
	stateSelectDevice state = iota
	stateClassifyDevice
	stateEncryptedMenu
	stateOpenExisting
	stateConfirmReEncrypt
	stateCheckTable
	stateConfirmEncrypt
	stateCollectPassphrase
	stateFormat
	stateBackupHeader
	stateCollectMapperName
	stateOpenNew
	stateDone
)

// session holds what one run has gathered so far. The passphrase buffer is
// cleared when the run ends, whatever the outcome.
type session struct {
	device catalog.Device
	pass   *terminal.Passphrase
	mapper string
}

// Deps wires a Flow's collaborators.
type Deps struct {
	Catalog   Catalog
	LUKS      LUKS
	Prompter  Prompter
	Progress  Progress
	Out       io.Writer
	BackupDir string
}

// Flow is the interactive session driver.
type Flow struct {
	catalog   Catalog
	luks      LUKS
	prompt    Prompter
	progress  Progress
	out       io.Writer
	backupDir string
}

// New returns a Flow over the given collaborators.
func New(d Deps) *Flow {
	return &Flow{
		catalog:   d.Catalog,
		luks:      d.LUKS,
		prompt:    d.Prompter,
		progress:  d.Progress,
		out:       d.Out,
		backupDir: d.BackupDir,
	}
}

// Run drives the session to a terminal outcome. A nil return means the
// operator quit, declined a confirmation, or the operation succeeded.
// Errors are failed preconditions or tool failures and end the process
// with a nonzero exit.
func (f *Flow) Run(ctx context.Context) error {
	s := &session{}
	defer func() {
		if s.pass != nil {
			s.pass.Clear()
		}
	}()

	f.banner()

	cur := stateSelectDevice
	for cur != stateDone {
		next, err := f.step(ctx, cur, s)
		if err != nil {
			return err
		}
		cur = next
	}
	return nil
}

func (f *Flow) step(ctx context.Context, cur state, s *session) (state, error) {
	switch cur {
	case stateSelectDevice:
		return f.selectDevice(ctx, s)
	case stateClassifyDevice:
		return f.classifyDevice(ctx, s)
	case stateEncryptedMenu:
		return f.encryptedMenu(s)
	case stateOpenExisting:
		return f.openExisting(ctx, s)
	case stateConfirmReEncrypt:
		return f.confirmReEncrypt(s)
	case stateCheckTable:
		return f.checkTable(ctx, s)
	case stateConfirmEncrypt:
		return f.confirmEncrypt(s)
	case stateCollectPassphrase:
		return f.collectPassphrase(s)
	case stateFormat:
		return f.format(ctx, s)
	case stateBackupHeader:
		return f.backupHeader(ctx, s)
	case stateCollectMapperName:
		return f.collectMapperName(s)
	case stateOpenNew:
		return f.openNew(ctx, s)
	default:
		return stateDone, fmt.Errorf("unknown flow state %d", cur)
	}
}

func (f *Flow) banner() {
	fmt.Fprintln(f.out, "--- USB Dongle LUKS Encryption ---")
	noteColor.Fprintln(f.out, "WARNING: This will ERASE ALL DATA on the selected device if you choose to encrypt.")
	fmt.Fprintln(f.out, "Only GPT partition tables are supported for new encryption.")
	fmt.Fprintln(f.out, strings.Repeat("-", 40))
}

func (f *Flow) selectDevice(ctx context.Context, s *session) (state, error) {
	devices, err := f.catalog.ListCandidates(ctx)
	if err != nil {
		return stateDone, err
	}
	if len(devices) == 0 {
		fmt.Fprintln(f.out, "No suitable USB devices found. Ensure the device is connected and removable.")
		return stateDone, nil
	}

	fmt.Fprintln(f.out, "\nAvailable USB Devices:")
	entries := make([]string, len(devices))
	for i, d := range devices {
		entry := fmt.Sprintf("%s (%s)", d.Path, d.Label())
		if d.Mounted {
			entry += " (Currently Mounted)"
		}
		entries[i] = entry
	}

	idx, quit, err := f.prompt.SelectDevice(entries)
	if err != nil {
		return stateDone, err
	}
	if quit {
		fmt.Fprintln(f.out, "Exiting.")
		return stateDone, nil
	}

	s.device = devices[idx]
	fmt.Fprintf(f.out, "\nSelected: %s (%s)\n", s.device.Path, s.device.Label())
	return stateClassifyDevice, nil
}

func (f *Flow) classifyDevice(ctx context.Context, s *session) (state, error) {
	if f.catalog.DetectEncryption(ctx, s.device.Path) {
		fmt.Fprintf(f.out, "\nNote: %s appears to be already LUKS-encrypted.\n", s.device.Path)
		return stateEncryptedMenu, nil
	}
	return stateCheckTable, nil
}

func (f *Flow) encryptedMenu(s *session) (state, error) {
	for {
		answer, err := f.prompt.ReadLine("Do you want to open it (type 'open'), re-encrypt (type 're-encrypt'), or exit (type 'exit')?")
		if err != nil {
			return stateDone, err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "open":
			return stateOpenExisting, nil
		case "re-encrypt":
			return stateConfirmReEncrypt, nil
		case "exit":
			fmt.Fprintln(f.out, "Exiting.")
			return stateDone, nil
		default:
			fmt.Fprintln(f.out, "Invalid choice. Type 'open', 're-encrypt', or 'exit'.")
		}
	}
}

func (f *Flow) openExisting(ctx context.Context, s *session) (state, error) {
	name, err := f.readMapperName("Enter mapper name to open LUKS volume (e.g., 'my_encrypted_usb'):")
	if err != nil {
		return stateDone, err
	}
	s.mapper = name

	pass, err := f.prompt.ReadSecret("Enter LUKS passphrase: ")
	if err != nil {
		return stateDone, err
	}
	s.pass = pass

	return f.open(ctx, s, false)
}

func (f *Flow) confirmReEncrypt(s *session) (state, error) {
	warnColor.Fprintf(f.out, "\nWARNING: Re-encrypting will ERASE ALL DATA on %s.\n", s.device.Path)
	answer, err := f.prompt.ReadLine(fmt.Sprintf("Type '%s' to proceed:", reEncryptSentence))
	if err != nil {
		return stateDone, err
	}
	if strings.TrimSpace(answer) != reEncryptSentence {
		fmt.Fprintln(f.out, "Re-encryption cancelled. Exiting.")
		return stateDone, nil
	}
	return stateCheckTable, nil
}

func (f *Flow) checkTable(ctx context.Context, s *session) (state, error) {
	kind := f.catalog.PartitionTable(ctx, s.device.Path)
	if kind != catalog.TableGPT {
		fmt.Fprintln(f.out, "Only GPT is supported. Convert the device with a partitioning tool such as 'parted' or 'gparted'.")
		return stateDone, &UnsupportedTableError{Device: s.device.Path, Kind: kind}
	}
	fmt.Fprintln(f.out, "Partition Table: GPT (OK)")
	return stateConfirmEncrypt, nil
}

func (f *Flow) confirmEncrypt(s *session) (state, error) {
	warnColor.Fprintf(f.out, "\nWARNING: Encrypting will ERASE ALL DATA on %s.\n", s.device.Path)
	answer, err := f.prompt.ReadLine(fmt.Sprintf("Type '%s' to proceed:", encryptSentence))
	if err != nil {
		return stateDone, err
	}
	if strings.TrimSpace(answer) != encryptSentence {
		fmt.Fprintln(f.out, "Confirmation failed. Exiting.")
		return stateDone, nil
	}
	return stateCollectPassphrase, nil
}

func (f *Flow) collectPassphrase(s *session) (state, error) {
	for {
		entry, err := f.prompt.ReadSecret("Enter LUKS passphrase: ")
		if err != nil {
			return stateDone, err
		}
		confirm, err := f.prompt.ReadSecret("Confirm LUKS passphrase: ")
		if err != nil {
			entry.Clear()
			return stateDone, err
		}

		err = terminal.ValidatePair(entry, confirm)
		confirm.Clear()
		if err == nil {
			s.pass = entry
			return stateFormat, nil
		}

		entry.Clear()
		if errors.Is(err, terminal.ErrPassphraseMismatch) {
			fmt.Fprintln(f.out, "Passphrases do not match.")
		} else {
			fmt.Fprintf(f.out, "Passphrase too short. Use at least %d characters.\n", constants.MinPassphraseLength)
		}
	}
}

func (f *Flow) format(ctx context.Context, s *session) (state, error) {
	f.progress.Start(fmt.Sprintf("Formatting %s with LUKS", s.device.Path))
	err := f.luks.Format(ctx, s.device.Path, s.pass)
	f.progress.Stop()
	if err != nil {
		return stateDone, err
	}

	okColor.Fprintf(f.out, "\nSuccessfully formatted %s with LUKS.\n", s.device.Path)
	return stateBackupHeader, nil
}

// backupHeader is best effort. The device is already formatted, so a failed
// backup is reported and the run continues to the open step.
func (f *Flow) backupHeader(ctx context.Context, s *session) (state, error) {
	file, err := f.luks.BackupHeader(ctx, s.device.Path, f.backupDir)
	if err != nil {
		fmt.Fprintf(f.out, "Failed to back up LUKS header: %v\n", err)
		return stateCollectMapperName, nil
	}

	fmt.Fprintf(f.out, "\nLUKS header backup saved to: %s\n", file)
	fmt.Fprintln(f.out, "Keep this file safe! Restore with:")
	fmt.Fprintf(f.out, "  cryptsetup luksHeaderRestore %s --header-backup-file %s\n", s.device.Path, file)
	return stateCollectMapperName, nil
}

func (f *Flow) collectMapperName(s *session) (state, error) {
	name, err := f.readMapperName("Enter mapper name (e.g., 'my_encrypted_usb'):")
	if err != nil {
		return stateDone, err
	}
	s.mapper = name
	return stateOpenNew, nil
}

func (f *Flow) openNew(ctx context.Context, s *session) (state, error) {
	return f.open(ctx, s, true)
}

// readMapperName prompts for a device-mapper name and verifies the name is
// not already mapped. An empty name is fatal rather than re-prompted.
func (f *Flow) readMapperName(prompt string) (string, error) {
	name, err := f.prompt.ReadLine(prompt)
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errEmptyMapperName
	}
	if err := f.luks.CheckMapperFree(name); err != nil {
		return "", err
	}
	return name, nil
}

// open unlocks the container under the spinner. freshFormat selects the
// post-format guidance, since a newly formatted container has no
// filesystem yet.
func (f *Flow) open(ctx context.Context, s *session, freshFormat bool) (state, error) {
	f.progress.Start(fmt.Sprintf("Opening LUKS volume '%s'", s.mapper))
	err := f.luks.Open(ctx, s.device.Path, s.mapper, s.pass)
	f.progress.Stop()
	if err != nil {
		var busy *luks.DeviceBusyError
		if errors.As(err, &busy) {
			fmt.Fprintln(f.out, "Ensure the device is unmounted and any existing LUKS mappings are closed.")
			fmt.Fprintln(f.out, "A quick fix is to safely remove the USB dongle, reinsert it, and run the tool again.")
		}
		return stateDone, err
	}

	mapped := f.luks.MapperPath(s.mapper)
	okColor.Fprintf(f.out, "\nSuccessfully opened: %s\n", mapped)
	if freshFormat {
		fmt.Fprintf(f.out, "Create a filesystem on it with, e.g.:\n  mkfs.ext4 %s\n", mapped)
	}
	fmt.Fprintf(f.out, "Mount it with, e.g.:\n  mount %s /mnt/usb\n", mapped)
	fmt.Fprintf(f.out, "Close it later with:\n  usbluks close %s\n", s.mapper)
	return stateDone, nil
}
