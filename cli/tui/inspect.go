package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/thence/cli/reader"
)

// refreshInterval is how often the TUI re-reads the run's event log. The
// underlying reader has no push channel, so the dashboard polls.
const refreshInterval = 2 * time.Second

// tickMsg requests a re-read of the run state.
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// InspectModel is a Bubble Tea model for the live run-inspection view. It
// re-projects the run's state on every tick so gate literals, open
// questions and in-flight attempts stay current while a run is executing.
type InspectModel struct {
	runID    string
	summary  *reader.RunSummary
	err      error
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model for runID, seeded with an
// initial summary (may be nil if not yet loaded).
func NewInspectModel(runID string, summary *reader.RunSummary) InspectModel {
	return InspectModel{runID: runID, summary: summary}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return tick()
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		summary, err := reader.GetReader().InspectRun(context.Background(), m.runID)
		if err != nil {
			m.err = err
		} else {
			m.summary = summary
			m.err = nil
		}
		return m, tick()
	}

	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	content := m.renderRun()
	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderRun() string {
	if m.err != nil && m.summary == nil {
		return BoxStyle.Render(ErrorStyle.Render(fmt.Sprintf("inspect %s: %v", m.runID, m.err)))
	}
	if m.summary == nil {
		return BoxStyle.Render("loading...")
	}
	data := m.summary

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Run " + data.RunID))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"Status", string(data.Status)},
		{"Plan validated", fmt.Sprintf("%t", data.PlanValidated)},
		{"Spec approved", fmt.Sprintf("%t", data.SpecApproved)},
		{"Checks approved", fmt.Sprintf("%t", data.ChecksApproved)},
		{"Paused", fmt.Sprintf("%t", data.Paused)},
		{"Merge in progress", fmt.Sprintf("%t", data.MergeInProgress)},
		{"Last seq", fmt.Sprintf("%d", data.LastSeq)},
	}
	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := ValueStyle.Render(row[1])
		if row[0] == "Status" {
			value = StateStyle(row[1]).Render(row[1])
		}
		fmt.Fprintf(&b, "%s %s\n", label, value)
	}

	if data.FailureReason != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render(*data.FailureReason))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(TitleStyle.Render("Tasks"))
	b.WriteString("\n")
	for _, task := range data.Tasks {
		state := string(task.State)
		line := fmt.Sprintf("  %s %s attempt=%d",
			ValueStyle.Render(task.TaskID), StateStyle(state).Render(state), task.Attempt)
		if task.InFlight {
			line += " " + WarningStyle.Render("[in-flight]")
		}
		b.WriteString(line + "\n")
	}

	if len(data.OpenQuestions) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Open questions"))
		b.WriteString("\n")
		for _, q := range data.OpenQuestions {
			b.WriteString(fmt.Sprintf("  %s %s: %s\n",
				WarningStyle.Render(q.QuestionID), q.Kind, q.Prompt))
		}
	}

	return BoxStyle.Render(b.String())
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the live inspect TUI for a single run.
func RunInspectTUI(viewType string, data any) error {
	summary, _ := data.(*reader.RunSummary)
	runID := ""
	if summary != nil {
		runID = summary.RunID
	}
	model := NewInspectModel(runID, summary)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	summary, _ := data.(*reader.RunSummary)
	runID := ""
	if summary != nil {
		runID = summary.RunID
	}
	model := NewInspectModel(runID, summary)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
