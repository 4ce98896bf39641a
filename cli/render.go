// Package cli renders engineer replies and progress in the terminal for
// the lifeline commands that run interactively.
package cli

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorOrange = "\033[38;5;208m"
	ColorGray   = "\033[90m"
	ColorBold   = "\033[1m"
)

// Renderer prints engineer replies as formatted markdown with a spinner
// while waiting.
type Renderer struct {
	spinner  *spinner
	renderer *glamour.TermRenderer
}

// NewRenderer creates a terminal renderer.
func NewRenderer() *Renderer {
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	return &Renderer{
		spinner:  newSpinner(),
		renderer: renderer,
	}
}

// Waiting starts the spinner with a status message.
func (r *Renderer) Waiting(message string) {
	r.spinner.Start(message)
}

// Reply stops the spinner and prints the engineer's reply as markdown.
func (r *Renderer) Reply(content string) {
	r.spinner.Stop()
	if content == "" {
		return
	}

	rendered := content
	if r.renderer != nil {
		if out, err := r.renderer.Render(content); err == nil {
			rendered = out
		}
	}

	// Glamour adds leading/trailing newlines - trim them
	rendered = strings.TrimSpace(rendered)
	fmt.Printf("%s•%s %s\n\n", ColorGray, ColorReset, rendered)
}

// Error stops the spinner and prints a failure line.
func (r *Renderer) Error(err error) {
	r.spinner.Stop()
	fmt.Printf("%sError:%s %v\n", ColorBold, ColorReset, err)
}

// spinner handles the loading animation
type spinner struct {
	frames  []string
	stop    chan struct{}
	stopped chan struct{}
	mu      sync.Mutex
	running bool
}

func newSpinner() *spinner {
	return &spinner{
		frames:  []string{"◐", "◓", "◑", "◒"},
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (s *spinner) Start(message string) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.stopped)
		i := 0
		for {
			select {
			case <-s.stop:
				fmt.Print("\r\033[K") // Clear line
				return
			default:
				fmt.Printf("\r%s%s%s %s", ColorGray, s.frames[i%len(s.frames)], ColorReset, message)
				i++
				time.Sleep(80 * time.Millisecond)
			}
		}
	}()
}

func (s *spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stop)
	<-s.stopped
}
