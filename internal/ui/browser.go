package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/roundmail/internal/keys"
	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/theme"
)

// Loader fetches the listing of one mailbox.
type Loader func(ctx context.Context, mailbox string) (model.MailboxSnapshot, error)

// SnapshotLoadedMsg carries the result of a Loader call.
type SnapshotLoadedMsg struct {
	Mailbox  string
	Snapshot model.MailboxSnapshot
	Err      error
}

// Browser is a tabbed mailbox listing. Choosing a row ends the program
// with that row selected.
type Browser struct {
	ctx     context.Context
	load    Loader
	keys    *keys.KeyMap
	help    help.Model
	spinner spinner.Model
	layout  Layout

	tabs   []string
	active int
	snaps  map[string]model.MailboxSnapshot
	table  table.Model

	loading  bool
	err      error
	selected *model.MessageRow
}

// NewBrowser creates a browser over tabs, starting on the first one.
func NewBrowser(ctx context.Context, load Loader, tabs []string) Browser {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	b := Browser{
		ctx:     ctx,
		load:    load,
		keys:    keys.DefaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		layout:  NewLayout(defaultWide, 24),
		tabs:    tabs,
		snaps:   make(map[string]model.MailboxSnapshot),
	}
	b.table = NewMailboxTable(model.MailboxSnapshot{}, b.layout.Width, b.layout.ContentHeight(), true)
	return b
}

// Selected returns the chosen row, or nil when the user quit.
func (b Browser) Selected() *model.MessageRow {
	return b.selected
}

// Mailbox returns the mailbox of the active tab.
func (b Browser) Mailbox() string {
	if len(b.tabs) == 0 {
		return ""
	}
	return b.tabs[b.active]
}

func (b Browser) Init() tea.Cmd {
	return tea.Batch(b.fetch(b.Mailbox()), b.spinner.Tick)
}

func (b Browser) fetch(mailbox string) tea.Cmd {
	ctx, load := b.ctx, b.load
	return func() tea.Msg {
		snap, err := load(ctx, mailbox)
		return SnapshotLoadedMsg{Mailbox: mailbox, Snapshot: snap, Err: err}
	}
}

func (b Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.layout = NewLayout(msg.Width, msg.Height)
		b.rebuild()
		return b, nil

	case SnapshotLoadedMsg:
		if msg.Mailbox == b.Mailbox() {
			b.loading = false
			b.err = msg.Err
		}
		if msg.Err == nil {
			b.snaps[msg.Mailbox] = msg.Snapshot
			b.rebuild()
		}
		return b, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		b.spinner, cmd = b.spinner.Update(msg)
		return b, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, b.keys.Quit):
			return b, tea.Quit
		case key.Matches(msg, b.keys.Select):
			if row, ok := b.cursorRow(); ok {
				b.selected = &row
				return b, tea.Quit
			}
			return b, nil
		case key.Matches(msg, b.keys.NextTab):
			return b.switchTab(1)
		case key.Matches(msg, b.keys.PrevTab):
			return b.switchTab(-1)
		case key.Matches(msg, b.keys.Refresh):
			b.loading, b.err = true, nil
			return b, tea.Batch(b.fetch(b.Mailbox()), b.spinner.Tick)
		}
	}

	var cmd tea.Cmd
	b.table, cmd = b.table.Update(msg)
	return b, cmd
}

func (b Browser) switchTab(step int) (tea.Model, tea.Cmd) {
	if len(b.tabs) == 0 {
		return b, nil
	}
	b.active = (b.active + step + len(b.tabs)) % len(b.tabs)
	b.err = nil
	b.rebuild()
	if _, ok := b.snaps[b.Mailbox()]; ok {
		return b, nil
	}
	b.loading = true
	return b, tea.Batch(b.fetch(b.Mailbox()), b.spinner.Tick)
}

func (b *Browser) rebuild() {
	b.table = NewMailboxTable(b.snaps[b.Mailbox()], b.layout.Width, b.layout.ContentHeight(), true)
}

func (b Browser) cursorRow() (model.MessageRow, bool) {
	snap, ok := b.snaps[b.Mailbox()]
	if !ok {
		return model.MessageRow{}, false
	}
	i := b.table.Cursor()
	if i < 0 || i >= len(snap.Messages) {
		return model.MessageRow{}, false
	}
	return snap.Messages[i], true
}

func (b Browser) View() string {
	tabs := make([]string, len(b.tabs))
	for i, name := range b.tabs {
		if i == b.active {
			tabs[i] = "[" + name + "]"
		} else {
			tabs[i] = " " + name + " "
		}
	}

	snap, loaded := b.snaps[b.Mailbox()]
	header := b.layout.RenderHeader(strings.Join(tabs, " "), QuotaLabel(snap.Quota))

	var content string
	switch {
	case b.err != nil:
		content = lipgloss.NewStyle().Foreground(theme.ColorRed).Render(b.err.Error())
	case b.loading || !loaded:
		content = b.spinner.View() + " loading " + b.Mailbox()
	default:
		content = b.table.View()
	}

	status := b.help.ShortHelpView(b.keys.ShortHelp())
	if loaded {
		status = fmt.Sprintf("%s · %d unread · %s", snap.RowCount, snap.UnreadCount, status)
	}

	return b.layout.RenderWithFrame(header, content, b.layout.RenderStatusBar(status))
}

// Browse runs the browser full-screen and returns the chosen row and its
// mailbox. A nil row means the user quit without choosing.
func Browse(ctx context.Context, load Loader, tabs []string) (*model.MessageRow, string, error) {
	final, err := tea.NewProgram(
		NewBrowser(ctx, load, tabs),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	).Run()
	if err != nil {
		return nil, "", fmt.Errorf("running mailbox browser: %w", err)
	}

	b, ok := final.(Browser)
	if !ok {
		return nil, "", nil
	}
	return b.Selected(), b.Mailbox(), nil
}
