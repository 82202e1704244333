package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nhle/roundmail/internal/model"
	"github.com/nhle/roundmail/internal/store"
)

// NewTestStore opens a SQLiteStore in a per-test directory with all
// migrations applied, closed when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "roundmail.db"))
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedSnapshot caches snap for server and returns its id.
func SeedSnapshot(t *testing.T, s *store.SQLiteStore, server string, snap model.MailboxSnapshot) string {
	t.Helper()

	id, err := s.ReplaceSnapshot(context.Background(), server, snap)
	if err != nil {
		t.Fatalf("seeding snapshot of %s: %v", snap.Mailbox, err)
	}
	return id
}
