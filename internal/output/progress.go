package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// writerIsTTY reports whether w is a file descriptor attached to a terminal.
func writerIsTTY(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && isatty.IsTerminal(f.Fd())
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner shows that a package manager call is still running. On a terminal
// it redraws "⠹ Creating environment jq (12s)" in place; elsewhere it prints
// "Creating environment jq..." once.
type Spinner struct {
	message string
	w       io.Writer

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
	width   int
}

// NewSpinner returns a spinner for message writing to stderr.
func NewSpinner(message string) *Spinner {
	return &Spinner{message: message, w: os.Stderr}
}

// SetWriter redirects the spinner. Call it before Start.
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

// Start shows the spinner. Calling it again while running does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})

	if !writerIsTTY(s.w) {
		fmt.Fprintf(s.w, "%s...\n", s.message)
		close(s.stopped)
		return
	}
	go s.run(time.Now())
}

func (s *Spinner) run(start time.Time) {
	defer close(s.stopped)
	tick := time.NewTicker(120 * time.Millisecond)
	defer tick.Stop()

	for frame := 0; ; frame++ {
		line := spinnerFrames[frame%len(spinnerFrames)] + " " + s.message
		if elapsed := time.Since(start); elapsed >= 2*time.Second {
			line += " (" + elapsed.Truncate(time.Second).String() + ")"
		}
		s.width = max(s.width, len(line))
		fmt.Fprintf(s.w, "\r%s", line)

		select {
		case <-tick.C:
		case <-s.stop:
			fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.width))
			return
		}
	}
}

// Stop clears the spinner line and waits for the redraw loop to exit.
// Calling it more than once, or before Start, does nothing.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if s.stop == nil {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.stop:
		s.mu.Unlock()
		return
	default:
	}
	close(s.stop)
	stopped := s.stopped
	s.mu.Unlock()
	<-stopped
}
