// Package cmdrunner executes the external collaborator tools (lsblk, parted,
// cryptsetup) and classifies their failures.
package cmdrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Request describes one external tool invocation.
type Request struct {
	Name string
	Args []string

	// Stdin, when non-nil, is piped to the process. Used to feed
	// passphrases to tools that read them interactively.
	Stdin io.Reader

	// TolerateNonZero suppresses the ToolError on nonzero exit. The caller
	// still receives the captured output and exit code.
	TolerateNonZero bool
}

// Result carries the captured output of a completed invocation.
type Result struct {
	Stdout []byte
	Stderr []byte
	Code   int
}

// Runner executes external tools. Callers depend on this interface so tests
// can substitute a scripted fake.
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// ToolError reports a collaborator tool that exited nonzero.
type ToolError struct {
	Name   string
	Args   []string
	Code   int
	Stdout []byte
	Stderr []byte
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Name, e.Code)
	if detail := strings.TrimSpace(string(e.Stderr)); detail != "" {
		msg += ": " + detail
	}
	return msg
}

// ExecRunner runs tools as real subprocesses.
type ExecRunner struct {
	log zerolog.Logger
}

// New returns a Runner backed by os/exec.
func New(log zerolog.Logger) *ExecRunner {
	return &ExecRunner{log: log}
}

// Run blocks until the tool completes. No timeout is imposed here;
// cancellation comes only from the caller's context.
func (r *ExecRunner) Run(ctx context.Context, req Request) (Result, error) {
	cmd := exec.CommandContext(ctx, req.Name, req.Args...)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	if req.Stdin != nil {
		cmd.Stdin = req.Stdin
	}

	start := time.Now()
	err := cmd.Run()
	res := Result{Stdout: outBuf.Bytes(), Stderr: errBuf.Bytes(), Code: exitCode(err)}

	r.log.Debug().
		Str("command", req.Name).
		Strs("args", req.Args).
		Int("code", res.Code).
		Dur("elapsed", time.Since(start)).
		Msg("external tool finished")

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// The process never ran: missing binary or cancelled context.
			return res, fmt.Errorf("run %s: %w", req.Name, err)
		}
		if !req.TolerateNonZero {
			return res, &ToolError{
				Name:   req.Name,
				Args:   req.Args,
				Code:   res.Code,
				Stdout: res.Stdout,
				Stderr: res.Stderr,
			}
		}
	}

	return res, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
