// Package status reports collection progress to the operator: a
// progressbar.v3 bar by default, or an opt-in charmbracelet bubbletea TUI.
package status

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives progress updates from the worker pool.
// Implementations must be safe for concurrent use: every worker goroutine
// calls ObjectProcessed independently.
type Reporter interface {
	SetTotal(n int64)
	ObjectProcessed()
	SetPhase(name string)
	Close() error
}

// barReporter wraps a schollz/progressbar/v3 bar for CLI progress display.
type barReporter struct {
	bar   *progressbar.ProgressBar
	count int64
}

// NewBarReporter builds the default Reporter: a single redrawing bar written
// to w, refreshed at most every interval.
func NewBarReporter(w io.Writer, interval time.Duration) Reporter {
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionThrottle(interval),
		progressbar.OptionSetDescription("collecting"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	return &barReporter{bar: bar}
}

func (r *barReporter) SetTotal(n int64) {
	r.bar.ChangeMax64(n)
}

func (r *barReporter) ObjectProcessed() {
	atomic.AddInt64(&r.count, 1)
	r.bar.Add(1)
}

func (r *barReporter) SetPhase(name string) {
	r.bar.Describe(name)
}

func (r *barReporter) Close() error {
	return r.bar.Finish()
}

// noopReporter discards every update; it is the RunContext default until a
// caller installs another Reporter.
type noopReporter struct{}

func (noopReporter) SetTotal(int64)   {}
func (noopReporter) ObjectProcessed() {}
func (noopReporter) SetPhase(string)  {}
func (noopReporter) Close() error     { return nil }

// NewNoop returns a Reporter that does nothing.
func NewNoop() Reporter { return noopReporter{} }

// Summary is printed once a run (or loop pass) finishes.
type Summary struct {
	Phase        string
	ObjectCount  int64
	Duration     time.Duration
	Faulted      bool
	FaultReason  string
}

// PrintSummary writes a one-line human-readable recap to w.
func PrintSummary(w io.Writer, s Summary) {
	if s.Faulted {
		fmt.Fprintf(w, "%s: faulted after %d objects in %s: %s\n", s.Phase, s.ObjectCount, s.Duration.Round(time.Second), s.FaultReason)
		return
	}
	fmt.Fprintf(w, "%s: %d objects in %s\n", s.Phase, s.ObjectCount, s.Duration.Round(time.Second))
}
