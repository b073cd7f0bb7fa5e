package db

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// localSchema is the local replica schema. The records table carries four
// sync-tracking columns (sync_status, synced_at, is_deleted, and the
// surrogate id) that do not exist on the remote replica; the sessions table
// mirrors the remote one so the registry can fall back to it offline.
const localSchema = `
CREATE TABLE IF NOT EXISTS records (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    stable_key  TEXT NOT NULL UNIQUE,
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    completed   INTEGER NOT NULL DEFAULT 0,
    priority    TEXT NOT NULL DEFAULT 'medium',
    created_at  TIMESTAMP NOT NULL,
    updated_at  TIMESTAMP NOT NULL,
    sync_status TEXT NOT NULL DEFAULT 'pending',
    synced_at   TIMESTAMP,
    is_deleted  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_records_sync_status ON records(sync_status);

CREATE TABLE IF NOT EXISTS sessions (
    session_id     TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    device_id      TEXT NOT NULL,
    device_name    TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMP NOT NULL,
    last_active_at TIMESTAMP NOT NULL,
    expires_at     TIMESTAMP NOT NULL,
    is_active      INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`

// OpenSQLite opens (creating if needed) the local SQLite store at path and
// ensures the schema exists. Caller must call Close when done.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite allows a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(localSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
