// Package tui renders a live progress view of the identification sweep
// using bubbletea/bubbles/lipgloss, the same stack the example corpus's
// own interactive tools use for long-running terminal jobs.
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/archscan/funcid/internal/driver"
)

var (
	matchStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	noMatchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// resultMsg carries one driver.Result into the bubbletea update loop.
type resultMsg driver.Result

// doneMsg signals the sweep finished.
type doneMsg struct{}

// Model is the bubbletea model backing a live sweep view.
type Model struct {
	total     int
	completed int
	bar       progress.Model
	last      string
	done      bool
}

// NewModel builds a progress view for a sweep over total routines.
func NewModel(total int) Model {
	return Model{total: total, bar: progress.New(progress.WithDefaultGradient())}
}

func (m Model) Init() tea.Cmd { return nil }

// Feed is called by the driver's OnResult hook (via a channel-backed
// tea.Program) once per routine, after the driver's passes have finished.
func Feed(p *tea.Program, r driver.Result) { p.Send(resultMsg(r)) }

// Done signals the sweep is complete.
func Done(p *tea.Program) { p.Send(doneMsg{}) }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resultMsg:
		m.completed++
		switch {
		case msg.Err != nil:
			m.last = errStyle.Render(fmt.Sprintf("%s: unreconstructed", msg.Routine.Name))
		case msg.Candidate != "":
			m.last = matchStyle.Render(fmt.Sprintf("%s -> %s", msg.Routine.Name, msg.Candidate))
		default:
			m.last = noMatchStyle.Render(fmt.Sprintf("%s: no match", msg.Routine.Name))
		}
		if m.total > 0 {
			return m, m.bar.SetPercent(float64(m.completed) / float64(m.total))
		}
		return m, nil
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	if m.done {
		return fmt.Sprintf("done: %d/%d routines\n", m.completed, m.total)
	}
	return fmt.Sprintf("%s\n%d/%d  %s\n", m.bar.View(), m.completed, m.total, m.last)
}
