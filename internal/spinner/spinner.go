// Package spinner renders a single-line busy indicator while a long-running
// external call is in flight.
package spinner

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

const defaultInterval = 100 * time.Millisecond

// Spinner repaints one status line on a fixed cadence between Start and
// Stop. Cosmetic only: nothing is shared with the caller beyond the stop
// channel, and callers stop it before printing any error detail.
type Spinner struct {
	out      io.Writer
	interval time.Duration

	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	done chan struct{}
	wg   sync.WaitGroup
}

// New returns a stopped Spinner writing to out.
func New(out io.Writer) *Spinner {
	return &Spinner{out: out, interval: defaultInterval}
}

// Start begins repainting with the given message. Starting a running
// spinner is a no-op.
func (s *Spinner) Start(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar != nil {
		return
	}

	s.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(s.out),
		progressbar.OptionSetDescription(message),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.spin(s.bar, s.done)
}

// Stop halts the animation and clears the status line. Stopping a stopped
// spinner is a no-op.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if s.bar == nil {
		s.mu.Unlock()
		return
	}
	bar := s.bar
	done := s.done
	s.bar = nil
	s.done = nil
	s.mu.Unlock()

	close(done)
	s.wg.Wait()
	_ = bar.Clear()
}

func (s *Spinner) spin(bar *progressbar.ProgressBar, done chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
}
