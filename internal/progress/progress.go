// Package progress reports long-running CLI work: a byte or count bar when
// the total is known, a spinner otherwise. Output is suppressed when stderr
// is not a terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Reporter is the interface for reporting progress.
type Reporter interface {
	// Start begins tracking. A negative total shows a spinner.
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// New returns a CLIProgress writing to stderr when stderr is a terminal and
// quiet is false, a NoOpProgress otherwise.
func New(quiet bool) Reporter {
	if quiet || !IsTerminal() {
		return NewNoOpProgress()
	}
	return NewCLIProgress(os.Stderr)
}

// IsTerminal reports whether stderr is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// CLIProgress implements progress reporting for CLI mode using progress bars.
type CLIProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
	mu  sync.Mutex
}

// NewCLIProgress creates a new CLI progress reporter writing to out.
func NewCLIProgress(out io.Writer) *CLIProgress {
	return &CLIProgress{out: out}
}

// Start initializes the bar with total size and description.
func (p *CLIProgress) Start(total int64, description string) {
	opts := []progressbar.Option{
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100 * time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	}
	if total >= 0 {
		opts = append(opts, progressbar.OptionShowCount())
	}

	p.mu.Lock()
	p.bar = progressbar.NewOptions64(total, opts...)
	p.mu.Unlock()
}

// Update moves the bar to the current position.
func (p *CLIProgress) Update(current int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the bar.
func (p *CLIProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error displays an error message.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		p.mu.Lock()
		if p.bar != nil {
			_ = p.bar.Clear()
		}
		p.mu.Unlock()
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// SetDescription updates the bar description.
func (p *CLIProgress) SetDescription(desc string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// NoOpProgress is a progress reporter that does nothing (for background/silent operations).
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

// Start does nothing.
func (p *NoOpProgress) Start(total int64, description string) {}

// Update does nothing.
func (p *NoOpProgress) Update(current int64) {}

// Finish does nothing.
func (p *NoOpProgress) Finish() {}

// Error does nothing.
func (p *NoOpProgress) Error(err error) {}

// SetDescription does nothing.
func (p *NoOpProgress) SetDescription(desc string) {}

// spinInterval is how often Spin advances the spinner.
const spinInterval = 100 * time.Millisecond

// Spin shows a spinner on r while fn runs and reports fn's error.
func Spin(r Reporter, description string, fn func() error) error {
	r.Start(-1, description)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(spinInterval)
		defer ticker.Stop()
		var n int64
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				n++
				r.Update(n)
			}
		}
	}()

	err := fn()
	close(done)
	wg.Wait()

	if err != nil {
		r.Error(err)
		return err
	}
	r.Finish()
	return nil
}
