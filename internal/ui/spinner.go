package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a status line while an agent works. A Spinner is single
// use: Start once, Stop once (extra calls are no-ops).
type Spinner struct {
	out   io.Writer
	label string
	delay time.Duration

	start  sync.Once
	stop   sync.Once
	done   chan struct{}
	exited chan struct{}
}

// NewSpinner creates a spinner that draws label on out.
func NewSpinner(out io.Writer, label string) *Spinner {
	return &Spinner{
		out:    out,
		label:  label,
		delay:  100 * time.Millisecond,
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// Start begins drawing in a background goroutine.
func (s *Spinner) Start() {
	s.start.Do(func() {
		go s.loop()
	})
}

func (s *Spinner) loop() {
	defer close(s.exited)
	ticker := time.NewTicker(s.delay)
	defer ticker.Stop()
	for frame := 0; ; frame++ {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			_, _ = fmt.Fprintf(s.out, "\r%s %s", StylePrefixAgent.Render(spinnerFrames[frame%len(spinnerFrames)]), s.label)
		}
	}
}

// Stop halts the animation and clears the line. It is safe to call without
// Start.
func (s *Spinner) Stop() {
	s.stop.Do(func() {
		close(s.done)
		started := true
		s.start.Do(func() { started = false })
		if !started {
			return
		}
		<-s.exited
		_, _ = fmt.Fprint(s.out, "\r\033[K")
	})
}
