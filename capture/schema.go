package capture

import "database/sql"

// Schema contains the DDL for the capture tables. Call Init(db) to apply
// it, or embed the constant in your own schema management.
const Schema = `
-- Debug sessions
CREATE TABLE IF NOT EXISTS debug_sessions (
    session_id TEXT PRIMARY KEY,
    target_url TEXT NOT NULL DEFAULT '',
    started_at INTEGER NOT NULL,
    ended_at INTEGER,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_sessions_started
    ON debug_sessions(started_at DESC);

-- Protocol traffic journal
CREATE TABLE IF NOT EXISTS protocol_captures (
    capture_id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    direction TEXT NOT NULL,            -- command | event
    method TEXT NOT NULL,
    detail TEXT,                        -- optional JSON
    ok INTEGER NOT NULL DEFAULT 1,
    duration_ms INTEGER,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_captures_session_time
    ON protocol_captures(session_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_captures_method_time
    ON protocol_captures(method, created_at DESC);
`

// Init applies the capture schema to the given database.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
