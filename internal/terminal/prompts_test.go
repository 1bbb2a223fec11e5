package terminal

import (
	"bytes"
	"strings"
	"testing"
)

func TestSelectDevice(t *testing.T) {
	entries := []string{
		"/dev/sdb (SanDisk Cruzer Blade 14.9G) (Currently Mounted)",
		"/dev/sdc (/dev/sdc 29.8G)",
	}

	tests := []struct {
		name     string
		input    string
		wantIdx  int
		wantQuit bool
		wantOut  []string
	}{
		{
			name:    "first entry",
			input:   "1\n",
			wantIdx: 0,
		},
		{
			name:    "second entry",
			input:   "2\n",
			wantIdx: 1,
		},
		{
			name:     "quit",
			input:    "q\n",
			wantQuit: true,
		},
		{
			name:     "quit uppercase",
			input:    "Q\n",
			wantQuit: true,
		},
		{
			name:    "non-numeric then valid",
			input:   "sdb\n2\n",
			wantIdx: 1,
			wantOut: []string{"Invalid input."},
		},
		{
			name:    "out of range then valid",
			input:   "0\n3\n1\n",
			wantIdx: 0,
			wantOut: []string{"Invalid selection."},
		},
		{
			name:    "surrounding whitespace",
			input:   "  1  \n",
			wantIdx: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := &Console{in: strings.NewReader(tt.input), out: &out}

			idx, quit, err := c.SelectDevice(entries)
			if err != nil {
				t.Fatalf("SelectDevice: %v", err)
			}
			if quit != tt.wantQuit {
				t.Fatalf("quit = %v, want %v", quit, tt.wantQuit)
			}
			if !quit && idx != tt.wantIdx {
				t.Errorf("idx = %d, want %d", idx, tt.wantIdx)
			}

			for _, want := range tt.wantOut {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestSelectDeviceRendersMenu(t *testing.T) {
	var out bytes.Buffer
	c := &Console{in: strings.NewReader("1\n"), out: &out}

	if _, _, err := c.SelectDevice([]string{"/dev/sdb (16G)", "/dev/sdc (32G)"}); err != nil {
		t.Fatalf("SelectDevice: %v", err)
	}

	for _, want := range []string{"  [1] /dev/sdb (16G)", "  [2] /dev/sdc (32G)", "(or 'q' to quit)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestSelectDeviceInputClosed(t *testing.T) {
	c := &Console{in: strings.NewReader(""), out: &bytes.Buffer{}}

	if _, _, err := c.SelectDevice([]string{"/dev/sdb (16G)"}); err == nil {
		t.Fatal("expected error when input is closed")
	}
}
