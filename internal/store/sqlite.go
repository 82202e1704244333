package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/roundmail/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveSessionRow inserts or replaces the session row for row.Server.
func (s *SQLiteStore) SaveSessionRow(ctx context.Context, row SessionRow) error {
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (server, username, token, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(server) DO UPDATE SET
			username = excluded.username,
			token = excluded.token,
			updated_at = excluded.updated_at`,
		row.Server, row.Username, row.Token, row.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving session for %s: %w", row.Server, err)
	}
	return nil
}

// LoadSessionRow returns the session row for server, or ErrNotFound.
func (s *SQLiteStore) LoadSessionRow(ctx context.Context, server string) (SessionRow, error) {
	var (
		row       SessionRow
		updatedAt time.Time
	)

	err := s.db.QueryRowxContext(ctx,
		"SELECT server, username, token, updated_at FROM sessions WHERE server = ?",
		server,
	).Scan(&row.Server, &row.Username, &row.Token, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRow{}, fmt.Errorf("session for %s: %w", server, ErrNotFound)
	}
	if err != nil {
		return SessionRow{}, fmt.Errorf("loading session for %s: %w", server, err)
	}

	row.UpdatedAt = updatedAt
	return row, nil
}

// DeleteSessionRow removes the session row for server. Deleting a missing
// row is not an error.
func (s *SQLiteStore) DeleteSessionRow(ctx context.Context, server string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE server = ?", server); err != nil {
		return fmt.Errorf("deleting session for %s: %w", server, err)
	}
	return nil
}

// ReplaceSnapshot stores snap as the only cached listing for its mailbox
// on server. The previous snapshot and its rows are removed in the same
// transaction. It returns the new snapshot id.
func (s *SQLiteStore) ReplaceSnapshot(
	ctx context.Context, server string, snap model.MailboxSnapshot,
) (string, error) {
	columns, err := json.Marshal(snap.ColumnTypes)
	if err != nil {
		return "", fmt.Errorf("marshaling column types: %w", err)
	}

	quota := ""
	if snap.Quota != nil {
		raw, err := json.Marshal(snap.Quota)
		if err != nil {
			return "", fmt.Errorf("marshaling quota: %w", err)
		}
		quota = string(raw)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM snapshots WHERE server = ? AND mailbox = ?",
		server, snap.Mailbox,
	)
	if err != nil {
		return "", fmt.Errorf("removing previous snapshot of %s: %w", snap.Mailbox, err)
	}

	id := uuid.New().String()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (
			id, server, mailbox, page_title, unread_count,
			row_count, column_types, quota, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, server, snap.Mailbox, snap.PageTitle, snap.UnreadCount,
		snap.RowCount, string(columns), quota, s.now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting snapshot of %s: %w", snap.Mailbox, err)
	}

	if len(snap.Messages) > 0 {
		stmt, err := tx.PreparexContext(ctx, `
			INSERT INTO message_rows (
				snapshot_id, position, uid, subject, fromto,
				date, size, seen, flagged, ctype, mbox
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return "", fmt.Errorf("preparing row insert: %w", err)
		}
		defer stmt.Close()

		for i, m := range snap.Messages {
			_, err := stmt.ExecContext(ctx,
				id, i, m.ID, m.Subject, m.FromTo,
				m.Date, m.Size, m.Seen, boolToInt(m.Flagged), m.CType, m.Mbox,
			)
			if err != nil {
				return "", fmt.Errorf("inserting row %s: %w", m.Key(), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing snapshot of %s: %w", snap.Mailbox, err)
	}
	return id, nil
}

// LoadSnapshot returns the cached listing of mailbox on server, or
// ErrNotFound when it was never fetched.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, server, mailbox string) (*CachedSnapshot, error) {
	var (
		cached  CachedSnapshot
		columns string
		quota   string
	)

	err := s.db.QueryRowxContext(ctx, `
		SELECT id, mailbox, page_title, unread_count, row_count,
			column_types, quota, fetched_at
		FROM snapshots WHERE server = ? AND mailbox = ?`,
		server, mailbox,
	).Scan(
		&cached.ID, &cached.Snapshot.Mailbox, &cached.Snapshot.PageTitle,
		&cached.Snapshot.UnreadCount, &cached.Snapshot.RowCount,
		&columns, &quota, &cached.FetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot of %s: %w", mailbox, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot of %s: %w", mailbox, err)
	}

	cached.Snapshot.ColumnTypes = []string{}
	if err := json.Unmarshal([]byte(columns), &cached.Snapshot.ColumnTypes); err != nil {
		return nil, fmt.Errorf("unmarshaling column types: %w", err)
	}
	if quota != "" {
		cached.Snapshot.Quota = &model.QuotaInfo{}
		if err := json.Unmarshal([]byte(quota), cached.Snapshot.Quota); err != nil {
			return nil, fmt.Errorf("unmarshaling quota: %w", err)
		}
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT uid, subject, fromto, date, size, seen, flagged, ctype, mbox
		FROM message_rows WHERE snapshot_id = ? ORDER BY position`,
		cached.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying rows of %s: %w", mailbox, err)
	}
	defer rows.Close()

	cached.Snapshot.Messages = []model.MessageRow{}
	for rows.Next() {
		m, err := scanMessageRow(rows)
		if err != nil {
			return nil, err
		}
		cached.Snapshot.Messages = append(cached.Snapshot.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows of %s: %w", mailbox, err)
	}

	return &cached, nil
}

// ListSnapshots summarizes every cached listing for server, by mailbox.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, server string) ([]SnapshotSummary, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT s.id, s.server, s.mailbox, s.unread_count, s.fetched_at,
			(SELECT COUNT(*) FROM message_rows r WHERE r.snapshot_id = s.id)
		FROM snapshots s WHERE s.server = ? ORDER BY s.mailbox`,
		server,
	)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotSummary
	for rows.Next() {
		var sum SnapshotSummary
		if err := rows.Scan(
			&sum.ID, &sum.Server, &sum.Mailbox, &sum.UnreadCount, &sum.FetchedAt, &sum.Messages,
		); err != nil {
			return nil, fmt.Errorf("scanning snapshot summary: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return out, nil
}

// DeleteSnapshots drops every cached listing for server and reports how
// many were removed.
func (s *SQLiteStore) DeleteSnapshots(ctx context.Context, server string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE server = ?", server)
	if err != nil {
		return 0, fmt.Errorf("deleting snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted snapshots: %w", err)
	}
	return n, nil
}

// scanMessageRow scans a message row from a sqlx.Rows result set.
func scanMessageRow(rows *sqlx.Rows) (model.MessageRow, error) {
	var (
		m       model.MessageRow
		flagged int
	)

	err := rows.Scan(
		&m.ID, &m.Subject, &m.FromTo, &m.Date, &m.Size,
		&m.Seen, &flagged, &m.CType, &m.Mbox,
	)
	if err != nil {
		return model.MessageRow{}, fmt.Errorf("scanning message row: %w", err)
	}

	m.Flagged = flagged != 0
	return m, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
