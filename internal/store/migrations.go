package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	server     TEXT PRIMARY KEY,
	username   TEXT NOT NULL DEFAULT '',
	token      TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	id           TEXT PRIMARY KEY,
	server       TEXT NOT NULL,
	mailbox      TEXT NOT NULL,
	page_title   TEXT NOT NULL DEFAULT '',
	unread_count INTEGER NOT NULL DEFAULT 0,
	row_count    TEXT NOT NULL DEFAULT '',
	column_types TEXT NOT NULL DEFAULT '[]',
	quota        TEXT NOT NULL DEFAULT '',
	fetched_at   DATETIME NOT NULL,
	UNIQUE(server, mailbox)
);

CREATE TABLE IF NOT EXISTS message_rows (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	uid         INTEGER NOT NULL,
	subject     TEXT NOT NULL DEFAULT '',
	fromto      TEXT NOT NULL DEFAULT '',
	date        TEXT NOT NULL DEFAULT '',
	size        TEXT NOT NULL DEFAULT '',
	seen        INTEGER NOT NULL DEFAULT 0,
	flagged     INTEGER NOT NULL DEFAULT 0,
	ctype       TEXT NOT NULL DEFAULT '',
	mbox        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (snapshot_id, position)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_server ON snapshots(server);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
