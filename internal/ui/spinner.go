package ui

import (
	"context"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/roundmail/internal/theme"
)

type workDoneMsg struct{}

type spinnerModel struct {
	spinner spinner.Model
	title   string
	aborted bool
	done    bool
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case workDoneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.aborted = true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.done || m.aborted {
		return ""
	}
	return m.spinner.View() + " " + m.title + "\n"
}

// WithSpinner runs fn while a spinner titled title is drawn on out. When
// out is nil fn runs without any drawing. Ctrl+C cancels the context
// passed to fn. The error is always fn's own.
func WithSpinner(ctx context.Context, out io.Writer, title string, fn func(context.Context) error) error {
	if out == nil {
		return fn(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	p := tea.NewProgram(
		spinnerModel{spinner: sp, title: title},
		tea.WithContext(ctx),
		tea.WithOutput(out),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- fn(ctx)
		p.Send(workDoneMsg{})
	}()

	// The spinner is cosmetic; its failure never hides fn's result.
	_, _ = p.Run()
	cancel()
	return <-errCh
}
