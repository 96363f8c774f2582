// Package history keeps an append-only SQLite journal of swarm transitions:
// dispatches, completions, retries, retirements. The journal is an audit
// trail, not a source of truth; writes are best-effort and failures never
// affect engine behavior.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Event is one journaled transition.
type Event struct {
	ID         string    `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Event      string    `json:"event"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Journal wraps an SQLite connection holding the events table.
type Journal struct {
	mu   sync.Mutex
	conn *sql.DB
	path string

	// logf receives write failures; defaults to a no-op.
	logf func(format string, args ...interface{})
}

// DefaultPath returns the journal location under the data directory.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "history.db")
}

// Open opens (creating if needed) the journal at the given path and applies
// the schema.
func Open(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	// WAL mode for concurrent reads
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	j := &Journal{
		conn: conn,
		path: path,
		logf: func(string, ...interface{}) {},
	}
	if err := j.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return j, nil
}

// SetLogf sets the diagnostic log function used for write failures.
func (j *Journal) SetLogf(fn func(format string, args ...interface{})) {
	if j == nil || fn == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.logf = fn
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the underlying connection. Safe on a nil journal.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.conn.Close()
}

// migrate applies all pending schema migrations.
func (j *Journal) migrate() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := j.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{
			version: 1,
			sql: `
				CREATE TABLE IF NOT EXISTS events (
					id TEXT PRIMARY KEY,
					entity_type TEXT NOT NULL,
					entity_id TEXT NOT NULL,
					event TEXT NOT NULL,
					detail TEXT,
					created_at DATETIME NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_events_entity ON events(entity_type, entity_id);
				CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
			`,
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := j.conn.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := j.conn.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}

	return nil
}

// Record appends one event. Best-effort: failures are logged and swallowed,
// and a nil journal is a no-op, so callers never branch on journaling.
func (j *Journal) Record(entityType, entityID, event, detail string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.conn.Exec(
		"INSERT INTO events (id, entity_type, entity_id, event, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		uuid.NewString(), entityType, entityID, event, detail, time.Now().UTC(),
	)
	if err != nil {
		j.logf("[history] record %s/%s %s: %v", entityType, entityID, event, err)
	}
}

// Recent returns the most recent events, newest first.
func (j *Journal) Recent(limit int) ([]Event, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.conn.Query(
		"SELECT id, entity_type, entity_id, event, COALESCE(detail, ''), created_at FROM events ORDER BY created_at DESC, id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Event, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ForEntity returns all events recorded for one entity, oldest first.
func (j *Journal) ForEntity(entityType, entityID string) ([]Event, error) {
	if j == nil {
		return nil, nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.conn.Query(
		"SELECT id, entity_type, entity_id, event, COALESCE(detail, ''), created_at FROM events WHERE entity_type = ? AND entity_id = ? ORDER BY created_at, id",
		entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("query entity events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Event, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
