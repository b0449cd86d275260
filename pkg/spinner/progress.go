package spinner

import (
	"fmt"
	"sync"
)

// Progress counts finished jobs out of a known total on a spinner line,
// e.g. "discussions 3/10 (1 failed)". Without a TTY it prints one line per
// tenth of the total.
type Progress struct {
	*Spinner

	mu       sync.Mutex
	total    int
	done     int
	failed   int
	lastStep int
}

// NewProgress creates a counter for total jobs.
func NewProgress(message string, total int, config Config) *Progress {
	p := &Progress{Spinner: NewWithConfig(message, config), total: total}
	p.Spinner.suffix = p.counts
	return p
}

func (p *Progress) counts() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := fmt.Sprintf("%d/%d", p.done, p.total)
	if p.failed > 0 {
		s += fmt.Sprintf(" (%d failed)", p.failed)
	}
	return s
}

// Increment records one finished job.
func (p *Progress) Increment() { p.add(false) }

// IncrementFailed records one failed job.
func (p *Progress) IncrementFailed() { p.add(true) }

func (p *Progress) add(failed bool) {
	p.mu.Lock()
	p.done++
	if failed {
		p.failed++
	}
	step := 0
	if p.total > 0 {
		step = p.done * 10 / p.total
	}
	report := step > p.lastStep || p.done == p.total
	if report {
		p.lastStep = step
	}
	p.mu.Unlock()

	if report && !p.IsTTY() && p.IsActive() {
		p.Spinner.mu.Lock()
		fmt.Fprintln(p.config.Writer, p.line())
		p.Spinner.mu.Unlock()
	}
}

// Counts returns finished and failed jobs.
func (p *Progress) Counts() (done, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done, p.failed
}

// Finish stops the line and prints the final tally, marked as a failure
// when any job failed.
func (p *Progress) Finish() {
	_, failed := p.Counts()
	if failed > 0 {
		p.Fail("")
		return
	}
	p.Success("")
}
