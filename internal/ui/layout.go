package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/roundmail/internal/theme"
)

// Layout manages the browser's header, content and status bar sizes.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentHeight returns the height available for the table, never less
// than one row.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight
	if h < 1 {
		return 1
	}
	return h
}

// RenderHeader renders the top bar with the mailbox tabs on the left and
// the quota on the right.
func (l Layout) RenderHeader(tabs string, quota string) string {
	tabsRendered := theme.HeaderStyle.Render(tabs)
	quotaRendered := theme.HeaderStyle.Align(lipgloss.Right).Render(quota)

	gap := max(l.Width-lipgloss.Width(tabsRendered)-lipgloss.Width(quotaRendered), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, tabsRendered, filler, quotaRendered)
}

// RenderStatusBar renders the bottom bar, padded to the full width.
func (l Layout) RenderStatusBar(text string) string {
	rendered := theme.StatusBarStyle.Render(text)

	gap := max(l.Width-lipgloss.Width(rendered), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.StatusBarStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame stacks header, content and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}
