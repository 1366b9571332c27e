package logger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Spinner represents an animated spinner for long-running operations
type Spinner struct {
	mu       sync.Mutex
	active   bool
	message  string
	frames   []string
	interval time.Duration
	stopChan chan struct{}
	done     chan struct{}
}

// SpinnerDots is the default frame set
var SpinnerDots = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var colorSpinner = color.New(color.FgCyan)

// NewSpinner creates a new spinner with the default frames
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message:  message,
		frames:   SpinnerDots,
		interval: 100 * time.Millisecond,
	}
}

// Start starts the spinner animation
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()

			select {
			case <-stop:
				_, _ = fmt.Fprintf(Output, "\r%s\r", strings.Repeat(" ", len(msg)+10))
				return
			case <-ticker.C:
				_, _ = fmt.Fprintf(Output, "\r%s %s", colorSpinner.Sprint(s.frames[i%len(s.frames)]), msg)
			}
		}
	}()
}

// Stop stops the spinner and waits for the line to be cleared
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
}

// UpdateMessage updates the spinner message
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// WithSpinner runs fn while a spinner is shown
func WithSpinner(message string, fn func() error) error {
	spinner := NewSpinner(message)
	spinner.Start()

	err := fn()
	spinner.Stop()

	if err != nil {
		Errorf("%s failed: %v", message, err)
	} else {
		Success(message + " completed")
	}
	return err
}
