package terminal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
)

// Console prompts the operator on the controlling terminal.
type Console struct {
	in  io.Reader
	out io.Writer
}

// NewConsole returns a Console over stdin and stdout.
func NewConsole() *Console {
	return &Console{in: os.Stdin, out: os.Stdout}
}

// SelectDevice displays a numbered menu of device entries and returns the
// selected index (0-based), or quit=true when the operator types 'q'.
// Invalid input re-prompts and never terminates the run.
func (c *Console) SelectDevice(entries []string) (int, bool, error) {
	for i, entry := range entries {
		fmt.Fprintf(c.out, "  [%d] %s\n", i+1, entry)
	}

	reader := bufio.NewReader(c.in)
	for {
		fmt.Fprint(c.out, "\nEnter the number of the device to encrypt/open (or 'q' to quit): ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return 0, false, fmt.Errorf("failed to read input: %w", err)
		}
		input = strings.TrimSpace(input)

		if strings.EqualFold(input, "q") {
			return 0, true, nil
		}

		num, err := strconv.Atoi(input)
		if err != nil {
			fmt.Fprintln(c.out, "Invalid input.")
			continue
		}
		if num < 1 || num > len(entries) {
			fmt.Fprintln(c.out, "Invalid selection.")
			continue
		}

		return num - 1, false, nil
	}
}

// ReadLine prompts for one line of input and returns it with surrounding
// whitespace trimmed. Interior whitespace is preserved.
func (c *Console) ReadLine(prompt string) (string, error) {
	var answer string
	if err := survey.AskOne(&survey.Input{Message: prompt}, &answer); err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
