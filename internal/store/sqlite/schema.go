package sqlite

// schema is applied on every open; statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_connected  BOOLEAN NOT NULL DEFAULT 0,
	avatar        BLOB,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	sender     TEXT NOT NULL,
	receiver   TEXT NOT NULL,
	body       TEXT NOT NULL,
	reply_to   INTEGER,
	reactions  INTEGER NOT NULL DEFAULT 0,
	is_read    BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver, id);
CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender, receiver);
`
