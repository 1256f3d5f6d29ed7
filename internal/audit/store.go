// Package audit records outbound delivery attempts so best-effort failures
// stay observable after the request that swallowed them.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Action classifies what was attempted for a delivery row.
type Action string

const (
	ActionGenerate Action = "generate"
	ActionPost     Action = "post"
)

// Entry is one recorded delivery attempt.
type Entry struct {
	EventIdentity string
	Persona       string
	ChannelID     string
	Action        Action
	OK            bool
	Detail        string // error text for failures, empty on success
	CreatedAt     time.Time
}

// Store is a SQLite-backed delivery log.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deliveries (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		event_identity  TEXT NOT NULL,
		persona         TEXT NOT NULL,
		channel_id      TEXT,
		action          TEXT NOT NULL,
		ok              INTEGER NOT NULL,
		detail          TEXT,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_deliveries_event ON deliveries(event_identity);
	CREATE INDEX IF NOT EXISTS idx_deliveries_time ON deliveries(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts one delivery attempt. Failures to record are logged and
// swallowed; the audit log must never fail a request.
func (s *Store) Record(ctx context.Context, e Entry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (event_identity, persona, channel_id, action, ok, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.EventIdentity, e.Persona, e.ChannelID, string(e.Action), boolToInt(e.OK), e.Detail, e.CreatedAt,
	)
	if err != nil {
		s.logger.Warn("audit record failed", "event", e.EventIdentity, "err", err)
	}
}

// Recent returns the newest limit delivery rows, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_identity, persona, channel_id, action, ok, detail, created_at
		 FROM deliveries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var action string
		var ok int
		if err := rows.Scan(&e.EventIdentity, &e.Persona, &e.ChannelID, &action, &ok, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		e.OK = ok != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
