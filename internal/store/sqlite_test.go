package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/store"
	"github.com/nhle/roundmail/tests/testutil"
)

const server = "mail.example.com"

func inboxSnapshot() model.MailboxSnapshot {
	return model.MailboxSnapshot{
		Mailbox:     model.MailboxInbox,
		PageTitle:   "Inbox",
		UnreadCount: 2,
		RowCount:    "Messages 1 to 2 of 2",
		ColumnTypes: []string{"threads", "subject", "fromto", "date"},
		Messages: []model.MessageRow{
			{ID: 30, Subject: "second", FromTo: "bob", Seen: 0, Flagged: true, Mbox: "INBOX"},
			{ID: 10, Subject: "first", FromTo: "alice", Seen: 1, Mbox: "INBOX"},
		},
		Quota: &model.QuotaInfo{Used: 10, Total: 100, Percent: 10, Free: 90},
	}
}

func TestSessionRows(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	_, err := s.LoadSessionRow(ctx, server)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SaveSessionRow(ctx, store.SessionRow{Server: server, Username: "me", Token: "t1"}))
	require.NoError(t, s.SaveSessionRow(ctx, store.SessionRow{Server: server, Username: "me", Token: "t2"}))

	row, err := s.LoadSessionRow(ctx, server)
	require.NoError(t, err)
	assert.Equal(t, "me", row.Username)
	assert.Equal(t, "t2", row.Token)
	assert.False(t, row.UpdatedAt.IsZero())

	require.NoError(t, s.DeleteSessionRow(ctx, server))
	require.NoError(t, s.DeleteSessionRow(ctx, server), "deleting twice is fine")
	_, err = s.LoadSessionRow(ctx, server)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	snap := inboxSnapshot()
	id, err := s.ReplaceSnapshot(ctx, server, snap)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.LoadSnapshot(ctx, server, model.MailboxInbox)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, snap, got.Snapshot)
	assert.False(t, got.FetchedAt.IsZero())
}

func TestReplaceSnapshotDropsOldRows(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	_, err := s.ReplaceSnapshot(ctx, server, inboxSnapshot())
	require.NoError(t, err)

	next := model.MailboxSnapshot{
		Mailbox:     model.MailboxInbox,
		ColumnTypes: []string{},
		Messages:    []model.MessageRow{{ID: 99, Subject: "only", Mbox: "INBOX"}},
	}
	_, err = s.ReplaceSnapshot(ctx, server, next)
	require.NoError(t, err)

	got, err := s.LoadSnapshot(ctx, server, model.MailboxInbox)
	require.NoError(t, err)
	require.Len(t, got.Snapshot.Messages, 1)
	assert.Equal(t, int64(99), got.Snapshot.Messages[0].ID)
	assert.Nil(t, got.Snapshot.Quota)

	sums, err := s.ListSnapshots(ctx, server)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, 1, sums[0].Messages)
}

func TestSnapshotsAreScopedByServer(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	_, err := s.ReplaceSnapshot(ctx, server, inboxSnapshot())
	require.NoError(t, err)
	sent := inboxSnapshot()
	sent.Mailbox = model.MailboxSent
	_, err = s.ReplaceSnapshot(ctx, server, sent)
	require.NoError(t, err)

	_, err = s.LoadSnapshot(ctx, "other.example.com", model.MailboxInbox)
	require.ErrorIs(t, err, store.ErrNotFound)

	sums, err := s.ListSnapshots(ctx, server)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, model.MailboxInbox, sums[0].Mailbox)
	assert.Equal(t, model.MailboxSent, sums[1].Mailbox)
	assert.Equal(t, 2, sums[0].Messages)

	n, err := s.DeleteSnapshots(ctx, server)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	sums, err = s.ListSnapshots(ctx, server)
	require.NoError(t, err)
	assert.Empty(t, sums)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "roundmail.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveSessionRow(ctx, store.SessionRow{Server: server, Username: "me"}))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	row, err := s.LoadSessionRow(ctx, server)
	require.NoError(t, err)
	assert.Equal(t, "me", row.Username)
}
