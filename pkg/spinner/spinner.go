// Package spinner renders terminal feedback for long-running batches: an
// animated spinner for open-ended work and a counting variant for a known
// number of jobs. Output degrades to plain lines when not writing to a TTY.
package spinner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	hideCursor     = "\033[?25l"
	showCursor     = "\033[?25h"
	carriageReturn = "\r"

	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorReset = "\033[0m"

	symbolSuccess = "✓"
	symbolFailure = "✗"
)

// CharSet is the sequence of animation frames.
type CharSet []string

var (
	Braille = CharSet{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	Line    = CharSet{"|", "/", "-", "\\"}
)

// Config holds display options.
type Config struct {
	CharSet     CharSet
	RefreshRate time.Duration
	ShowElapsed bool
	// Writer defaults to os.Stderr.
	Writer io.Writer
	// IsTTY overrides terminal detection on Writer.
	IsTTY *bool
}

// DefaultConfig animates braille frames on stderr.
func DefaultConfig() Config {
	return Config{
		CharSet:     Braille,
		RefreshRate: 80 * time.Millisecond,
		ShowElapsed: true,
		Writer:      os.Stderr,
	}
}

func isTerminalWriter(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Spinner animates a single status line.
type Spinner struct {
	mu sync.Mutex

	config  Config
	isTTY   bool
	message string
	// suffix, when set, is appended to the message on every frame.
	suffix func() string

	active    bool
	startTime time.Time
	frame     int
	lastLen   int
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a spinner with the default configuration.
func New(message string) *Spinner {
	return NewWithConfig(message, DefaultConfig())
}

// NewWithConfig creates a spinner; zero config fields take defaults.
func NewWithConfig(message string, config Config) *Spinner {
	if len(config.CharSet) == 0 {
		config.CharSet = Braille
	}
	if config.RefreshRate <= 0 {
		config.RefreshRate = 80 * time.Millisecond
	}
	if config.Writer == nil {
		config.Writer = os.Stderr
	}
	isTTY := isTerminalWriter(config.Writer)
	if config.IsTTY != nil {
		isTTY = *config.IsTTY
	}
	return &Spinner{config: config, isTTY: isTTY, message: message}
}

// IsActive reports whether the spinner is running.
func (s *Spinner) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// IsTTY reports whether output is animated.
func (s *Spinner) IsTTY() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isTTY
}

// Elapsed returns the time since Start, or 0 before it.
func (s *Spinner) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

// Update replaces the message.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Start begins the animation. Starting a running spinner does nothing.
// Without a TTY it prints the message once.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.startTime = time.Now()
	s.frame = 0

	if !s.isTTY {
		fmt.Fprintf(s.config.Writer, "%s...\n", s.line())
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	fmt.Fprint(s.config.Writer, hideCursor)
	go s.spin(s.stopCh, s.doneCh)
}

func (s *Spinner) spin(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.config.RefreshRate)
	defer ticker.Stop()

	s.render()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.render()
		}
	}
}

func (s *Spinner) render() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	frame := s.config.CharSet[s.frame%len(s.config.CharSet)]
	s.frame++
	out := frame + " " + s.line()
	if s.config.ShowElapsed {
		out += " " + formatElapsed(time.Since(s.startTime))
	}
	s.clearLine()
	fmt.Fprint(s.config.Writer, out)
	s.lastLen = len(out)
}

// line is the message plus suffix. Caller must hold mu.
func (s *Spinner) line() string {
	if s.suffix == nil {
		return s.message
	}
	return s.message + " " + s.suffix()
}

// clearLine overwrites the last frame. Caller must hold mu.
func (s *Spinner) clearLine() {
	if s.lastLen > 0 {
		fmt.Fprint(s.config.Writer, carriageReturn+strings.Repeat(" ", s.lastLen)+carriageReturn)
		s.lastLen = 0
	}
}

// halt stops the animation goroutine and returns the elapsed time.
func (s *Spinner) halt() (time.Duration, bool) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return 0, false
	}
	s.active = false
	elapsed := time.Since(s.startTime)
	stop, done := s.stopCh, s.doneCh
	s.mu.Unlock()

	if s.isTTY {
		close(stop)
		<-done
		s.mu.Lock()
		s.clearLine()
		fmt.Fprint(s.config.Writer, showCursor)
		s.mu.Unlock()
	}
	return elapsed, true
}

// Stop ends the animation and clears the line. It blocks until the
// animation goroutine exits and is a no-op when not running.
func (s *Spinner) Stop() {
	s.halt()
}

// Success stops the spinner and prints a green check with message, or the
// current message when empty.
func (s *Spinner) Success(message string) {
	s.complete(message, symbolSuccess, colorGreen)
}

// Fail stops the spinner and prints a red cross.
func (s *Spinner) Fail(message string) {
	s.complete(message, symbolFailure, colorRed)
}

func (s *Spinner) complete(message, symbol, color string) {
	elapsed, wasActive := s.halt()

	s.mu.Lock()
	defer s.mu.Unlock()
	if message == "" {
		message = s.line()
	}
	mark := symbol
	if s.isTTY {
		mark = color + symbol + colorReset
	}
	out := mark + " " + message
	if wasActive && s.config.ShowElapsed {
		out += " " + formatElapsed(elapsed)
	}
	fmt.Fprintln(s.config.Writer, out)
}

// formatElapsed renders "(1.2s)" or "(1m 30s)".
func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("(%.1fs)", d.Seconds())
	}
	return fmt.Sprintf("(%dm %ds)", int(d.Minutes()), int(d.Seconds())%60)
}
