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

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS emails (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	message_id TEXT NOT NULL,
	sender     TEXT NOT NULL DEFAULT '',
	subject    TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL,
	date       DATETIME NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS uix_emails_user_message
	ON emails(user_id, message_id);

CREATE INDEX IF NOT EXISTS idx_emails_user_category ON emails(user_id, category);
CREATE INDEX IF NOT EXISTS idx_emails_user_date ON emails(user_id, date);
CREATE INDEX IF NOT EXISTS idx_emails_user_sender ON emails(user_id, sender);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
