package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/roundmail/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// SessionRow is the non-secret part of a saved session. The cookie lives
// in the credential vault.
type SessionRow struct {
	Server    string
	Username  string
	Token     string
	UpdatedAt time.Time
}

// SnapshotSummary describes a cached listing without its rows.
type SnapshotSummary struct {
	ID          string
	Server      string
	Mailbox     string
	UnreadCount int
	Messages    int
	FetchedAt   time.Time
}

// CachedSnapshot is a listing loaded back from the cache.
type CachedSnapshot struct {
	ID        string
	Snapshot  model.MailboxSnapshot
	FetchedAt time.Time
}

// Store defines the persistence interface for sessions and mailbox
// snapshots.
type Store interface {
	// Sessions
	SaveSessionRow(ctx context.Context, row SessionRow) error
	LoadSessionRow(ctx context.Context, server string) (SessionRow, error)
	DeleteSessionRow(ctx context.Context, server string) error

	// Snapshots
	ReplaceSnapshot(ctx context.Context, server string, snap model.MailboxSnapshot) (string, error)
	LoadSnapshot(ctx context.Context, server, mailbox string) (*CachedSnapshot, error)
	ListSnapshots(ctx context.Context, server string) ([]SnapshotSummary, error)
	DeleteSnapshots(ctx context.Context, server string) (int64, error)

	Close() error
}
