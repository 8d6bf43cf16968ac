// Package capture journals debugger protocol traffic to SQLite: commands
// with their outcome and duration, received events, and session lifetimes.
//
// Journal writes are best-effort. A failing capture store logs via slog and
// never fails the debugging operation that triggered it.
package capture

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/chrdbg/dbopen"
	"github.com/hazyhaar/chrdbg/idgen"
)

// Directions of a journal entry.
const (
	DirCommand = "command"
	DirEvent   = "event"
)

// Entry is one protocol interaction to record.
type Entry struct {
	SessionID string
	Direction string // DirCommand or DirEvent
	Method    string
	Detail    string // optional JSON
	OK        bool
	Duration  time.Duration // zero for events
}

// Row is a journal entry read back from the store.
type Row struct {
	CaptureID  string `json:"capture_id"`
	SessionID  string `json:"session_id"`
	Direction  string `json:"direction"`
	Method     string `json:"method"`
	Detail     string `json:"detail,omitempty"`
	OK         bool   `json:"ok"`
	DurationMs int64  `json:"duration_ms"`
	CreatedAt  int64  `json:"created_at"`
}

// Journal writes protocol captures and manages retention cleanup.
type Journal struct {
	db    *sql.DB
	newID idgen.Generator
}

// Option configures a Journal.
type Option func(*Journal)

// WithIDGenerator sets a custom ID generator for capture IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(j *Journal) { j.newID = gen }
}

// NewJournal creates a journal backed by the given capture database.
func NewJournal(db *sql.DB, opts ...Option) *Journal {
	j := &Journal{
		db:    db,
		newID: idgen.Prefixed("cap_", idgen.Default),
	}
	for _, o := range opts {
		o(j)
	}
	return j
}

// Init applies the capture schema.
func (j *Journal) Init() error {
	return Init(j.db)
}

// StartSession records the beginning of a debug session.
func (j *Journal) StartSession(ctx context.Context, sessionID, targetURL string) {
	_, err := dbopen.Exec(ctx, j.db, `
		INSERT OR REPLACE INTO debug_sessions (session_id, target_url, started_at)
		VALUES (?,?,?)`,
		sessionID, targetURL, time.Now().Unix())
	if err != nil {
		slog.Warn("capture: session start failed", "error", err, "session_id", sessionID)
	}
}

// EndSession marks a debug session as finished.
func (j *Journal) EndSession(ctx context.Context, sessionID string) {
	_, err := dbopen.Exec(ctx, j.db, `
		UPDATE debug_sessions SET ended_at = ? WHERE session_id = ?`,
		time.Now().Unix(), sessionID)
	if err != nil {
		slog.Warn("capture: session end failed", "error", err, "session_id", sessionID)
	}
}

// Record writes one journal entry. Errors are logged, never propagated, so
// a failing capture store never blocks a debugging operation.
func (j *Journal) Record(ctx context.Context, e Entry) {
	ok := 0
	if e.OK {
		ok = 1
	}
	_, err := dbopen.Exec(ctx, j.db, `
		INSERT INTO protocol_captures (
			capture_id, session_id, direction, method, detail, ok, duration_ms, created_at
		) VALUES (?,?,?,?,?,?,?,?)`,
		j.newID(), e.SessionID, e.Direction, e.Method, e.Detail, ok,
		e.Duration.Milliseconds(), time.Now().Unix())
	if err != nil {
		slog.Warn("capture: record failed", "error", err, "method", e.Method)
	}
}

// RecordCommand journals an issued protocol command and its outcome.
func (j *Journal) RecordCommand(ctx context.Context, sessionID, method string, ok bool, d time.Duration) {
	j.Record(ctx, Entry{
		SessionID: sessionID,
		Direction: DirCommand,
		Method:    method,
		OK:        ok,
		Duration:  d,
	})
}

// RecordEvent journals a received protocol event.
func (j *Journal) RecordEvent(ctx context.Context, sessionID, method string) {
	j.Record(ctx, Entry{
		SessionID: sessionID,
		Direction: DirEvent,
		Method:    method,
		OK:        true,
	})
}

// Recent returns the latest entries for a session, newest first. A limit of
// 0 or less defaults to 50, capped at 500.
func (j *Journal) Recent(ctx context.Context, sessionID string, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT capture_id, session_id, direction, method, COALESCE(detail, ''),
		       ok, COALESCE(duration_ms, 0), created_at
		FROM protocol_captures
		WHERE session_id = ?
		ORDER BY created_at DESC, capture_id DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("capture: recent: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var ok int
		if err := rows.Scan(&r.CaptureID, &r.SessionID, &r.Direction, &r.Method,
			&r.Detail, &ok, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("capture: scan: %w", err)
		}
		r.OK = ok != 0
		out = append(out, r)
	}
	if out == nil {
		out = []Row{}
	}
	return out, rows.Err()
}

// RetentionConfig specifies per-table retention in days. Zero means no cleanup.
type RetentionConfig struct {
	CapturesDays   int
	SessionsDays   int
	RunVacuumAfter bool
}

// Cleanup deletes records exceeding the retention thresholds.
func Cleanup(ctx context.Context, db *sql.DB, cfg RetentionConfig) error {
	now := time.Now().Unix()

	// Whitelists guard the fmt.Sprintf below against ever being refactored
	// to accept external table names.
	allowedTables := map[string]bool{
		"protocol_captures": true,
		"debug_sessions":    true,
	}
	allowedColumns := map[string]bool{
		"created_at": true,
		"started_at": true,
	}

	type cleanupTarget struct {
		table  string
		column string
		days   int
	}
	targets := []cleanupTarget{
		{"protocol_captures", "created_at", cfg.CapturesDays},
		{"debug_sessions", "started_at", cfg.SessionsDays},
	}

	for _, t := range targets {
		if t.days <= 0 {
			continue
		}
		if !allowedTables[t.table] || !allowedColumns[t.column] {
			return fmt.Errorf("capture: cleanup: invalid table/column %s/%s", t.table, t.column)
		}
		cutoff := now - int64(t.days*86400)
		q := fmt.Sprintf("DELETE FROM %s WHERE %s < ?", t.table, t.column)
		if _, err := db.ExecContext(ctx, q, cutoff); err != nil {
			return fmt.Errorf("capture: cleanup %s: %w", t.table, err)
		}
	}

	if cfg.RunVacuumAfter {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("capture: vacuum: %w", err)
		}
	}
	return nil
}
