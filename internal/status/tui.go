package status

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var phaseStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))

var quitKeys = key.NewBinding(key.WithKeys("ctrl+c", "q"))

type tickMsg time.Time

// tuiModel redraws from the reporter's shared counters on every tick; it
// never owns the count itself so ObjectProcessed stays lock-free.
type tuiModel struct {
	count    *int64
	phase    *string
	interval time.Duration
}

func (m tuiModel) Init() tea.Cmd { return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) }) }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
	case tea.KeyMsg:
		if key.Matches(msg, quitKeys) {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	return fmt.Sprintf("%s  %d objects\n", phaseStyle.Render(*m.phase), atomic.LoadInt64(m.count))
}

// tuiReporter drives a bubbletea program as the status display, an opt-in
// alternative to the plain progress bar for interactive terminals.
type tuiReporter struct {
	program *tea.Program
	count   int64
	phase   string
	done    chan struct{}
}

// NewTUIReporter starts a bubbletea program in the background and returns a
// Reporter that feeds it. Close stops the program and waits for it to exit.
func NewTUIReporter(interval time.Duration) Reporter {
	r := &tuiReporter{phase: "collecting", done: make(chan struct{})}
	m := tuiModel{count: &r.count, phase: &r.phase, interval: interval}
	r.program = tea.NewProgram(m)

	go func() {
		defer close(r.done)
		r.program.Run() //nolint:errcheck // terminal I/O error has nothing actionable to do with it here
	}()
	return r
}

func (r *tuiReporter) SetTotal(int64)       {}
func (r *tuiReporter) ObjectProcessed()     { atomic.AddInt64(&r.count, 1) }
func (r *tuiReporter) SetPhase(name string) { r.phase = name }

func (r *tuiReporter) Close() error {
	r.program.Quit()
	<-r.done
	return nil
}
