// Package theme holds the lipgloss colors and styles shared by the
// terminal output.
package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorCyan   = lipgloss.AdaptiveColor{Dark: "#66D9E8", Light: "#0B7285"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for mailbox titles and section headers.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the row counter and quota line.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps a message body.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// HelpStyle is used for key hints and secondary text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// LabelStyle renders field names in the message header block.
var LabelStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorGray)

// SelectedStyle highlights the focused table row.
var SelectedStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue)

// SeenStyle dims read rows and makes unread ones bold.
func SeenStyle(seen int) lipgloss.Style {
	if seen == 0 {
		return lipgloss.NewStyle().Bold(true).Foreground(ColorWhite)
	}
	return lipgloss.NewStyle().Foreground(ColorGray)
}

// QuotaStyle colors a usage percentage.
func QuotaStyle(percent float64) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch {
	case percent >= 90:
		return base.Foreground(ColorRed)
	case percent >= 75:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGreen)
	}
}

// FlagMark is the marker shown next to flagged rows.
func FlagMark(flagged bool) string {
	if !flagged {
		return " "
	}
	return lipgloss.NewStyle().Foreground(ColorRed).Render("!")
}
