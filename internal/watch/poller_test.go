package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/roundcube"
	"github.com/nhle/roundmail/tests/testutil"
)

const server = "mail.example.com"

// fakeLister serves the queued listings per mailbox in order, repeating
// the last one.
type fakeLister struct {
	mu    sync.Mutex
	queue map[string][][]int64
	err   error
	calls int
}

func (f *fakeLister) ListMailbox(_ context.Context, mailbox string) (*model.MailboxListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	q := f.queue[mailbox]
	uids := q[0]
	if len(q) > 1 {
		f.queue[mailbox] = q[1:]
	}

	snap := model.MailboxSnapshot{Mailbox: mailbox, ColumnTypes: []string{}, Messages: []model.MessageRow{}}
	for _, uid := range uids {
		snap.Messages = append(snap.Messages, model.MessageRow{ID: uid, Subject: fmt.Sprint("m", uid), Mbox: mailbox})
	}
	snap.UnreadCount = len(uids)
	return &model.MailboxListing{Snapshot: snap}, nil
}

func TestPollOnceReportsNewRows(t *testing.T) {
	ctx := context.Background()
	lister := &fakeLister{queue: map[string][][]int64{
		"INBOX": {{2, 1}, {4, 3, 2, 1}},
	}}
	p := New(lister, testutil.NewTestStore(t), server, []string{"INBOX"}, time.Minute, nil)

	first := p.PollOnce(ctx)
	require.Len(t, first, 1)
	require.NoError(t, first[0].Err)
	assert.Empty(t, first[0].New, "first poll only sets the baseline")

	second := p.PollOnce(ctx)
	require.Len(t, second, 1)
	require.Len(t, second[0].New, 2)
	assert.Equal(t, int64(4), second[0].New[0].ID)
	assert.Equal(t, int64(3), second[0].New[1].ID)
	assert.Equal(t, 4, second[0].Unread)

	st := p.Statuses()
	require.Len(t, st, 1)
	assert.Equal(t, StateIdle, st[0].State)
	assert.False(t, st[0].LastPoll.IsZero())
}

func TestPollOnceAgainstSeededCache(t *testing.T) {
	st := testutil.NewTestStore(t)
	testutil.SeedSnapshot(t, st, server, model.MailboxSnapshot{
		Mailbox:     "Sent",
		ColumnTypes: []string{},
		Messages:    []model.MessageRow{{ID: 1, Mbox: "Sent"}},
	})
	lister := &fakeLister{queue: map[string][][]int64{"Sent": {{5, 1}}}}

	res := New(lister, st, server, []string{"Sent"}, 0, nil).PollOnce(context.Background())
	require.Len(t, res, 1)
	require.Len(t, res[0].New, 1)
	assert.Equal(t, int64(5), res[0].New[0].ID)
}

func TestPollOnceStopsOnExpiredSession(t *testing.T) {
	lister := &fakeLister{err: fmt.Errorf("listing: %w", roundcube.ErrSessionExpired)}
	p := New(lister, testutil.NewTestStore(t), server, []string{"INBOX", "Sent"}, 0, nil)

	res := p.PollOnce(context.Background())
	require.Len(t, res, 1)
	assert.True(t, roundcube.IsSessionExpired(res[0].Err))
	assert.Equal(t, 1, lister.calls)
	assert.Equal(t, StateError, p.Statuses()[0].State)
}

func TestRunReturnsOnExpiry(t *testing.T) {
	lister := &fakeLister{err: roundcube.ErrSessionExpired}
	p := New(lister, testutil.NewTestStore(t), server, []string{"INBOX"}, time.Hour, nil)

	results := make(chan Result, 4)
	err := p.Run(context.Background(), results)
	assert.True(t, errors.Is(err, roundcube.ErrSessionExpired))
	assert.Len(t, results, 1)
}

func TestRunStopsWithContext(t *testing.T) {
	lister := &fakeLister{queue: map[string][][]int64{"INBOX": {{1}}}}
	p := New(lister, testutil.NewTestStore(t), server, []string{"INBOX"}, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan Result, 4)
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, results) }()

	select {
	case res := <-results:
		assert.NoError(t, res.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("no result from the first poll")
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
