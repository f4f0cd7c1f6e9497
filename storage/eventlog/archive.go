// Package eventlog archives emitted gateway events in SQLite so operators can
// audit accepted broadcasts after the fact. The archive is informational; the
// ledger remains the only authoritative state.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"metagate/core/events"
	"metagate/core/types"
)

const defaultRecentLimit = 50

// MaxRecentLimit caps the number of rows returned by Recent.
const MaxRecentLimit = 500

// Record is one archived event.
type Record struct {
	ID         int64             `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt time.Time         `json:"recordedAt"`
}

type typedEvent interface {
	Event() *types.Event
}

// Archive persists events to a SQLite database.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
	clock  func() time.Time
}

// Open opens (or creates) the archive at path. ":memory:" yields a private
// in-memory archive.
func Open(path string, logger *slog.Logger) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if logger == nil {
		logger = slog.Default()
	}
	archive := &Archive{db: db, logger: logger, clock: time.Now}
	if err := archive.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return archive, nil
}

func (a *Archive) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            type TEXT NOT NULL,
            attributes BLOB NOT NULL,
            recorded_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS events_type_idx ON events(type);`,
	}
	for _, stmt := range stmts {
		if _, err := a.db.Exec(stmt); err != nil {
			return fmt.Errorf("init event archive: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (a *Archive) Close() error { return a.db.Close() }

// Emit implements events.Emitter. Archive failures are logged and never
// propagate to the gateway, whose commit has already happened.
func (a *Archive) Emit(e events.Event) {
	if err := a.Append(context.Background(), e); err != nil {
		a.logger.Error("archive event", slog.String("type", e.EventType()), slog.String("error", err.Error()))
	}
}

// Append stores one event.
func (a *Archive) Append(ctx context.Context, e events.Event) error {
	if e == nil {
		return nil
	}
	attrs := map[string]string{}
	if typed, ok := e.(typedEvent); ok {
		if evt := typed.Event(); evt != nil && evt.Attributes != nil {
			attrs = evt.Attributes
		}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	const stmt = `INSERT INTO events(type, attributes, recorded_at) VALUES (?, ?, ?)`
	_, err = a.db.ExecContext(ctx, stmt, e.EventType(), encoded, a.clock().UTC())
	return err
}

// Recent returns up to limit archived events, newest first. A non-positive
// limit selects the default; larger limits are capped at MaxRecentLimit.
func (a *Archive) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	const query = `SELECT id, type, attributes, recorded_at FROM events ORDER BY id DESC LIMIT ?`
	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec   Record
			attrs []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Type, &attrs, &rec.RecordedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of archived events.
func (a *Archive) Count(ctx context.Context) (int64, error) {
	var n int64
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}
