// Package watch polls mailboxes and reports messages that appeared since
// the last cached listing.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/roundcube"
	"github.com/nhle/roundmail/internal/store"
)

// DefaultInterval is used when the poller is given no interval.
const DefaultInterval = 2 * time.Minute

// fetchTimeout is the maximum time allowed for a single listing fetch.
const fetchTimeout = 30 * time.Second

// Lister fetches one mailbox listing.
type Lister interface {
	ListMailbox(ctx context.Context, mailbox string) (*model.MailboxListing, error)
}

// SnapshotStore is the cache new rows are detected against.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, server, mailbox string) (*store.CachedSnapshot, error)
	ReplaceSnapshot(ctx context.Context, server string, snap model.MailboxSnapshot) (string, error)
}

// State is where a mailbox is in its poll cycle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

// Status holds the poll state of one mailbox.
type Status struct {
	Mailbox  string
	State    State
	LastPoll time.Time
	Err      error
}

// Result is the outcome of polling one mailbox.
type Result struct {
	Mailbox string

	// New holds rows whose key was not in the previous snapshot, in
	// listing order. It is empty on the first poll of a mailbox.
	New []model.MessageRow

	Unread int
	Err    error
}

// Poller polls a fixed set of mailboxes on one server.
type Poller struct {
	lister    Lister
	store     SnapshotStore
	server    string
	mailboxes []string
	interval  time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	statuses map[string]*Status
}

// New creates a Poller. A non-positive interval means DefaultInterval.
func New(l Lister, s SnapshotStore, server string, mailboxes []string, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	statuses := make(map[string]*Status, len(mailboxes))
	for _, m := range mailboxes {
		statuses[m] = &Status{Mailbox: m}
	}

	return &Poller{
		lister:    l,
		store:     s,
		server:    server,
		mailboxes: mailboxes,
		interval:  interval,
		logger:    logger,
		statuses:  statuses,
	}
}

// Run polls immediately and then on every tick, sending one Result per
// mailbox per round to results. It returns when ctx is done or when the
// session expires, since no later poll could succeed.
func (p *Poller) Run(ctx context.Context, results chan<- Result) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		for _, res := range p.PollOnce(ctx) {
			select {
			case results <- res:
			case <-ctx.Done():
				return ctx.Err()
			}
			if roundcube.IsSessionExpired(res.Err) {
				return res.Err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollOnce polls every mailbox in order. It stops early once the session
// has expired.
func (p *Poller) PollOnce(ctx context.Context) []Result {
	out := make([]Result, 0, len(p.mailboxes))
	for _, m := range p.mailboxes {
		res := p.poll(ctx, m)
		out = append(out, res)
		if roundcube.IsSessionExpired(res.Err) || errors.Is(res.Err, context.Canceled) {
			break
		}
	}
	return out
}

func (p *Poller) poll(ctx context.Context, mailbox string) Result {
	p.setStatus(mailbox, StateRunning, nil)

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var known map[string]bool
	cached, err := p.store.LoadSnapshot(ctx, p.server, mailbox)
	switch {
	case err == nil:
		known = make(map[string]bool, len(cached.Snapshot.Messages))
		for _, m := range cached.Snapshot.Messages {
			known[m.Key()] = true
		}
	case !errors.Is(err, store.ErrNotFound):
		p.logger.Warn("reading cached listing", "mailbox", mailbox, "error", err)
	}

	listing, err := p.lister.ListMailbox(ctx, mailbox)
	if err != nil {
		p.setStatus(mailbox, StateError, err)
		return Result{Mailbox: mailbox, Err: err}
	}
	snap := listing.Snapshot

	var fresh []model.MessageRow
	if known != nil {
		for _, m := range snap.Messages {
			if !known[m.Key()] {
				fresh = append(fresh, m)
			}
		}
	}

	if _, err := p.store.ReplaceSnapshot(ctx, p.server, snap); err != nil {
		p.setStatus(mailbox, StateError, err)
		return Result{Mailbox: mailbox, Err: err}
	}

	p.logger.Debug("mailbox polled", "mailbox", mailbox, "rows", len(snap.Messages), "new", len(fresh))
	p.setStatus(mailbox, StateIdle, nil)
	return Result{Mailbox: mailbox, New: fresh, Unread: snap.UnreadCount}
}

// Statuses returns the poll state of every mailbox, sorted by name.
func (p *Poller) Statuses() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Status, 0, len(p.statuses))
	for _, s := range p.statuses {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mailbox < out[j].Mailbox })
	return out
}

func (p *Poller) setStatus(mailbox string, state State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[mailbox]
	if !ok {
		return
	}
	status.State = state
	status.Err = err
	if state == StateIdle {
		status.LastPoll = time.Now()
	}
}
