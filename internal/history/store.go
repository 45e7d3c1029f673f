// Package history keeps a local SQLite log of finished dictation sessions.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one finished session. For failed sessions Text holds the error.
type Entry struct {
	ID           int64
	Mode         string
	Outcome      string
	Text         string
	AudioSeconds float64
	CreatedAt    time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS dictations (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	mode         TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	text         TEXT NOT NULL DEFAULT '',
	audioSeconds REAL NOT NULL DEFAULT 0,
	createdAt    REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dictations_created ON dictations(createdAt);
`

// Store is a dictation history database. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("history: create directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	// One writer; also keeps a :memory: database from splitting per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores e and returns its ID. A zero CreatedAt is set to now.
func (s *Store) Append(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO dictations (mode, outcome, text, audioSeconds, createdAt)
		VALUES (?, ?, ?, ?, ?)
	`, e.Mode, e.Outcome, e.Text, e.AudioSeconds, unixSeconds(e.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("history: insert: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, outcome, text, audioSeconds, createdAt
		FROM dictations
		ORDER BY createdAt DESC, id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt float64
		if err := rows.Scan(&e.ID, &e.Mode, &e.Outcome, &e.Text, &e.AudioSeconds, &createdAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.CreatedAt = timeFromUnix(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
