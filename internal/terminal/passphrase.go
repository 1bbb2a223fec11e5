// Package terminal handles operator input: no-echo passphrase entry, line
// prompts, and the numbered device menu.
package terminal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/constants"
)

// Validation failures recovered by re-prompting the operator.
var (
	ErrPassphraseMismatch = errors.New("passphrases do not match")
	ErrPassphraseTooShort = errors.New("passphrase too short")
)

// Passphrase wraps secret material with the ability to clear it from memory.
type Passphrase struct {
	data []byte
}

// NewPassphrase wraps existing bytes. The Passphrase takes ownership of the
// slice.
func NewPassphrase(data []byte) *Passphrase {
	return &Passphrase{data: data}
}

// String returns the passphrase as a string.
func (p *Passphrase) String() string {
	if p.data == nil {
		return ""
	}
	return string(p.data)
}

// Len returns the length of the passphrase.
func (p *Passphrase) Len() int {
	return len(p.data)
}

// Clear zeros out the passphrase data in memory.
// Should be called when the passphrase is no longer needed.
func (p *Passphrase) Clear() {
	if p.data != nil {
		for i := range p.data {
			p.data[i] = 0
		}
		p.data = nil
	}
}

// Reader returns an io.Reader over the passphrase bytes.
// This avoids creating a string copy of the passphrase.
func (p *Passphrase) Reader() io.Reader {
	if p.data == nil {
		return bytes.NewReader(nil)
	}
	return bytes.NewReader(p.data)
}

// Equal reports whether two passphrases hold the same bytes.
func (p *Passphrase) Equal(other *Passphrase) bool {
	return bytes.Equal(p.data, other.data)
}

// ValidatePair checks a passphrase entry against its confirmation: both must
// match and the passphrase must be at least the minimum length. Mismatch is
// reported before length so the operator learns about the typo first.
func ValidatePair(entry, confirm *Passphrase) error {
	if !entry.Equal(confirm) {
		return ErrPassphraseMismatch
	}
	if entry.Len() < constants.MinPassphraseLength {
		return ErrPassphraseTooShort
	}
	return nil
}

// IsTerminal returns true if stdin is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

// ReadSecret prompts for secret input without echoing it.
func (c *Console) ReadSecret(prompt string) (*Passphrase, error) {
	if !IsTerminal() {
		return nil, fmt.Errorf("cannot read passphrase: not a terminal")
	}

	fmt.Fprint(c.out, prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(c.out) // newline after secret entry
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}

	return &Passphrase{data: secret}, nil
}
