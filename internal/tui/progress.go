// Package tui renders live progress for the long-running pipelines
// (audit, fix-it-all) while the work itself runs in a goroutine and
// feeds messages into the program.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	issueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))
)

// ProgressMsg updates the current phase and counts.
type ProgressMsg struct {
	Label  string // e.g. "precheck", "aicheck", "categorize"
	Done   int
	Total  int
	Issues int
}

// DoneMsg ends the program; Err is surfaced by the caller afterwards.
type DoneMsg struct {
	Err error
}

// Model is the progress view.
type Model struct {
	title   string
	spinner spinner.Model
	bar     progress.Model

	label  string
	done   int
	total  int
	issues int

	finished bool
	err      error
}

// New creates a progress view with the given title line.
func New(title string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		title:   title,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient()),
	}
}

// Err returns the error delivered by DoneMsg, if any.
func (m Model) Err() error {
	return m.err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.finished = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-8, 60)
		return m, nil

	case ProgressMsg:
		m.label = msg.Label
		m.done = msg.Done
		m.total = msg.Total
		m.issues = msg.Issues
		return m, nil

	case DoneMsg:
		m.finished = true
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.finished {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(m.title))
	b.WriteString("\n\n")

	percent := 0.0
	if m.total > 0 {
		percent = float64(m.done) / float64(m.total)
	}

	b.WriteString(fmt.Sprintf("%s %s %s",
		m.spinner.View(),
		labelStyle.Render(m.label),
		countStyle.Render(fmt.Sprintf("%d/%d", m.done, m.total)),
	))
	if m.issues > 0 {
		b.WriteString("  ")
		b.WriteString(issueStyle.Render(fmt.Sprintf("%d issues", m.issues)))
	}
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(percent))
	b.WriteString("\n")

	return b.String()
}
