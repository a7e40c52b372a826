package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	domain "github.com/jobtrack/migrator/internal/domain/progress"
)

var (
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Render
	stageStyle = lipgloss.NewStyle().Bold(true).Width(18)
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Render
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Render
)

// EventMsg carries a progress event into the program.
type EventMsg domain.Event

// DoneMsg ends the program once the migration returns.
type DoneMsg struct {
	Err error
}

type stageLine struct {
	name  string
	event domain.Event
	done  bool
}

// MigrationModel renders one progress bar per stage seen so far.
type MigrationModel struct {
	bar    progress.Model
	stages []*stageLine
	byName map[string]*stageLine
	cancel context.CancelFunc
	err    error
	done   bool
}

// NewMigrationModel creates the model. cancel is invoked on ctrl+c.
func NewMigrationModel(cancel context.CancelFunc) MigrationModel {
	return MigrationModel{
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		byName: make(map[string]*stageLine),
		cancel: cancel,
	}
}

// Init initializes the model
func (m MigrationModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model
func (m MigrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 40
		if m.bar.Width > 60 {
			m.bar.Width = 60
		}
		if m.bar.Width < 10 {
			m.bar.Width = 10
		}
		return m, nil
	case EventMsg:
		m.apply(domain.Event(msg))
		return m, nil
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	default:
		return m, nil
	}
}

// apply records e. A new stage marks every earlier stage as done.
func (m *MigrationModel) apply(e domain.Event) {
	line, ok := m.byName[e.Stage]
	if !ok {
		for _, s := range m.stages {
			s.done = true
		}
		line = &stageLine{name: e.Stage}
		m.byName[e.Stage] = line
		m.stages = append(m.stages, line)
	}
	line.event = e
	if e.Total > 0 && e.Index >= e.Total {
		line.done = true
	}
}

// View renders the progress bars
func (m MigrationModel) View() string {
	var sb strings.Builder
	sb.WriteString("\n")
	for _, s := range m.stages {
		percent := s.event.Percentage() / 100
		mark := "  "
		if s.done {
			percent = 1
			mark = doneStyle("✓ ")
		}
		sb.WriteString("  " + mark + stageStyle.Render(s.name) + m.bar.ViewAs(percent) + "\n")
		sb.WriteString("      " + helpStyle(s.event.Item) + "\n")
	}
	switch {
	case m.err != nil:
		sb.WriteString("\n  " + failStyle("✗ "+m.err.Error()) + "\n")
	case !m.done:
		sb.WriteString("\n  " + helpStyle("ctrl+c to abort") + "\n")
	}
	return sb.String()
}

// Observer forwards progress events to a running program.
func Observer(p *tea.Program) domain.Observer {
	return domain.ObserverFunc(func(e domain.Event) {
		p.Send(EventMsg(e))
	})
}

// SimpleProgress renders a one-line text progress indicator.
func SimpleProgress(current, total int, message string) string {
	if total <= 0 {
		return message
	}
	percent := float64(current) / float64(total) * 100
	filled := int(percent / 5)
	if filled > 20 {
		filled = 20
	}
	bar := "[" + strings.Repeat("=", filled) + strings.Repeat(" ", 20-filled) + "]"
	return fmt.Sprintf("%s %s %.0f%% (%d/%d)", message, bar, percent, current, total)
}
