package cmdrunner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestRunCapturesStdout(t *testing.T) {
	r := New(zerolog.Nop())

	res, err := r.Run(context.Background(), Request{Name: "echo", Args: []string{"hello"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got, want := string(res.Stdout), "hello\n"; got != want {
		t.Errorf("Stdout = %q, want %q", got, want)
	}
	if res.Code != 0 {
		t.Errorf("Code = %d, want 0", res.Code)
	}
}

func TestRunPipesStdin(t *testing.T) {
	r := New(zerolog.Nop())

	res, err := r.Run(context.Background(), Request{
		Name:  "cat",
		Stdin: strings.NewReader("piped input"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got, want := string(res.Stdout), "piped input"; got != want {
		t.Errorf("Stdout = %q, want %q", got, want)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	r := New(zerolog.Nop())

	res, err := r.Run(context.Background(), Request{
		Name: "sh",
		Args: []string{"-c", "echo oops >&2; exit 3"},
	})
	if err == nil {
		t.Fatal("Run() error = nil, want ToolError")
	}

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("Run() error = %v, want *ToolError", err)
	}
	if toolErr.Code != 3 {
		t.Errorf("Code = %d, want 3", toolErr.Code)
	}
	if !strings.Contains(string(toolErr.Stderr), "oops") {
		t.Errorf("Stderr = %q, want it to contain %q", toolErr.Stderr, "oops")
	}
	if res.Code != 3 {
		t.Errorf("Result.Code = %d, want 3", res.Code)
	}
}

func TestRunTolerateNonZero(t *testing.T) {
	r := New(zerolog.Nop())

	res, err := r.Run(context.Background(), Request{
		Name:            "sh",
		Args:            []string{"-c", "exit 3"},
		TolerateNonZero: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil with TolerateNonZero", err)
	}
	if res.Code != 3 {
		t.Errorf("Code = %d, want 3", res.Code)
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := New(zerolog.Nop())

	_, err := r.Run(context.Background(), Request{Name: "no-such-binary-usbluks-test"})
	if err == nil {
		t.Fatal("Run() error = nil, want spawn failure")
	}

	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		t.Errorf("Run() error = ToolError %v, want plain spawn failure", toolErr)
	}
}

func TestToolErrorMessage(t *testing.T) {
	err := &ToolError{Name: "cryptsetup", Code: 5, Stderr: []byte("Device is busy.\n")}
	if got, want := err.Error(), "cryptsetup exited with code 5: Device is busy."; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := &ToolError{Name: "parted", Code: 1}
	if got, want := bare.Error(), "parted exited with code 1"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
