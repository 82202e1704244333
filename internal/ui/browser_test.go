package ui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/roundmail/internal/model"
)

func loaded(t *testing.T, b Browser, mailbox string, snap model.MailboxSnapshot) Browser {
	t.Helper()
	next, _ := b.Update(SnapshotLoadedMsg{Mailbox: mailbox, Snapshot: snap})
	out, ok := next.(Browser)
	require.True(t, ok)
	return out
}

func press(t *testing.T, b Browser, k tea.KeyMsg) (Browser, tea.Cmd) {
	t.Helper()
	next, cmd := b.Update(k)
	out, ok := next.(Browser)
	require.True(t, ok)
	return out, cmd
}

func TestBrowserSelectsRowUnderCursor(t *testing.T) {
	b := NewBrowser(context.Background(), nil, []string{model.MailboxInbox, model.MailboxSent})
	b = loaded(t, b, model.MailboxInbox, sampleSnapshot())

	b, _ = press(t, b, tea.KeyMsg{Type: tea.KeyDown})
	b, cmd := press(t, b, tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, b.Selected())
	assert.Equal(t, int64(20), b.Selected().ID)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestBrowserLoadsTabOnce(t *testing.T) {
	calls := 0
	load := func(_ context.Context, mailbox string) (model.MailboxSnapshot, error) {
		calls++
		return model.MailboxSnapshot{Mailbox: mailbox}, nil
	}

	b := NewBrowser(context.Background(), load, []string{model.MailboxInbox, model.MailboxSent})
	b = loaded(t, b, model.MailboxInbox, sampleSnapshot())

	b, cmd := press(t, b, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, model.MailboxSent, b.Mailbox())
	assert.True(t, b.loading)
	require.NotNil(t, cmd)

	b = loaded(t, b, model.MailboxSent, model.MailboxSnapshot{Mailbox: model.MailboxSent})
	assert.False(t, b.loading)

	b, _ = press(t, b, tea.KeyMsg{Type: tea.KeyShiftTab})
	b, cmd = press(t, b, tea.KeyMsg{Type: tea.KeyTab})
	assert.Nil(t, cmd, "cached tab is not fetched again")
	assert.Zero(t, calls)
}

func TestBrowserShowsLoadError(t *testing.T) {
	b := NewBrowser(context.Background(), nil, []string{model.MailboxInbox})
	next, _ := b.Update(SnapshotLoadedMsg{Mailbox: model.MailboxInbox, Err: errors.New("boom")})
	assert.Contains(t, next.View(), "boom")
}

func TestWithSpinnerWithoutOutput(t *testing.T) {
	err := WithSpinner(context.Background(), nil, "working", func(context.Context) error {
		return errors.New("fn failed")
	})
	assert.EqualError(t, err, "fn failed")
}
