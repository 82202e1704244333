package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/theme"
)

// Fixed column widths; the subject takes what is left.
const (
	uidWidth    = 7
	flagWidth   = 1
	fromWidth   = 24
	dateWidth   = 16
	sizeWidth   = 9
	minSubject  = 10
	columnGaps  = 2 * 6
	defaultWide = 100
)

func mailboxColumns(width int) []table.Column {
	if width <= 0 {
		width = defaultWide
	}
	subject := max(width-uidWidth-flagWidth-fromWidth-dateWidth-sizeWidth-columnGaps, minSubject)

	return []table.Column{
		{Title: "UID", Width: uidWidth},
		{Title: "", Width: flagWidth},
		{Title: "From/To", Width: fromWidth},
		{Title: "Subject", Width: subject},
		{Title: "Date", Width: dateWidth},
		{Title: "Size", Width: sizeWidth},
	}
}

// MailboxRows turns listing rows into table rows, keeping their order.
// Unread rows get a "*" in the flag column unless they are flagged.
func MailboxRows(messages []model.MessageRow) []table.Row {
	rows := make([]table.Row, 0, len(messages))
	for _, m := range messages {
		mark := ""
		switch {
		case m.Flagged:
			mark = "!"
		case m.Seen == 0:
			mark = "*"
		}
		rows = append(rows, table.Row{
			strconv.FormatInt(m.ID, 10),
			mark,
			m.FromTo,
			m.Subject,
			m.Date,
			m.Size,
		})
	}
	return rows
}

// NewMailboxTable builds a table for snap sized to width by height.
func NewMailboxTable(snap model.MailboxSnapshot, width, height int, focused bool) table.Model {
	t := table.New(
		table.WithColumns(mailboxColumns(width)),
		table.WithRows(MailboxRows(snap.Messages)),
		table.WithHeight(max(height, 1)),
		table.WithFocused(focused),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true).
		Bold(true)
	styles.Selected = theme.SelectedStyle
	if !focused {
		styles.Selected = lipgloss.NewStyle()
	}
	t.SetStyles(styles)
	return t
}

// RenderSnapshot renders a whole listing for non-interactive output:
// a header, every row and a footer with the counters.
func RenderSnapshot(snap model.MailboxSnapshot, width int) string {
	title := snap.PageTitle
	if title == "" {
		title = snap.Mailbox
	}

	header := theme.HeaderStyle.Render(title)
	if snap.Quota != nil {
		header += " " + QuotaLabel(snap.Quota)
	}

	body := theme.HelpStyle.Render("No messages.")
	if len(snap.Messages) > 0 {
		body = NewMailboxTable(snap, width, len(snap.Messages)+3, false).View()
	}

	footer := fmt.Sprintf("%d unread", snap.UnreadCount)
	if snap.RowCount != "" {
		footer = snap.RowCount + " · " + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, theme.HelpStyle.Render(footer))
}

// QuotaLabel renders the quota title, or the used percentage when the
// server sent no title.
func QuotaLabel(q *model.QuotaInfo) string {
	if q == nil {
		return ""
	}
	text := q.Title
	if text == "" {
		text = fmt.Sprintf("%.0f%% used", q.Percent)
	}
	return theme.QuotaStyle(q.Percent).Render(text)
}
