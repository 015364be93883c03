// Package auditlog records capture attempts in a SQLite database kept next
// to the cache. The log is strictly observational: a failing audit store
// never blocks or fails a node, errors go to slog and are dropped.
package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS capture_events (
	event_id    TEXT PRIMARY KEY,
	node_id     TEXT NOT NULL,
	reason      TEXT NOT NULL,
	success     INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	bytes       INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_capture_events_node
	ON capture_events(node_id, created_at);
`

// CaptureEvent is one capture attempt, successful or not.
type CaptureEvent struct {
	NodeID   string
	Reason   string // initial | resize
	Success  bool
	Duration time.Duration
	Bytes    int
}

// Logger writes capture events. A nil *Logger is valid and records nothing,
// so callers never need to branch on whether auditing is enabled.
type Logger struct {
	db *sql.DB
}

// Open opens (or creates) the audit database with the production pragmas:
// WAL journal, busy_timeout, synchronous NORMAL.
func Open(path string) (*Logger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("auditlog: open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("auditlog: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("auditlog: apply schema: %w", err)
	}

	return &Logger{db: db}, nil
}

// RecordCapture inserts one event. Errors are logged, never returned.
func (l *Logger) RecordCapture(ctx context.Context, ev CaptureEvent) {
	if l == nil || l.db == nil {
		return
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO capture_events (
			event_id, node_id, reason, success, duration_ms, bytes, created_at
		) VALUES (?,?,?,?,?,?,?)`,
		newEventID(), ev.NodeID, ev.Reason, ev.Success,
		ev.Duration.Milliseconds(), ev.Bytes, time.Now().Unix())
	if err != nil {
		slog.Error("auditlog: record capture failed", "error", err, "node", ev.NodeID)
	}
}

// Cleanup deletes events older than maxAge.
func (l *Logger) Cleanup(ctx context.Context, maxAge time.Duration) error {
	if l == nil || l.db == nil {
		return nil
	}
	cutoff := time.Now().Add(-maxAge).Unix()
	if _, err := l.db.ExecContext(ctx,
		"DELETE FROM capture_events WHERE created_at < ?", cutoff); err != nil {
		return fmt.Errorf("auditlog: cleanup: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (l *Logger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "cap_" + id.String()
}
