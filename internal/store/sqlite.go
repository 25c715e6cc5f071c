package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const queueSchema = `
CREATE TABLE IF NOT EXISTS delivery_queue (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	payload     TEXT    NOT NULL,
	enqueued_at INTEGER NOT NULL
);
`

// SQLiteQueue is the durable cross-session Queue, backed by a single
// SQLite table. Survives process restarts; the startup drain recovers
// entries stranded by a previous run.
type SQLiteQueue struct {
	db       *sql.DB
	capacity int
}

// OpenSQLiteQueue opens (creating if needed) the queue database at path
// with the production-safe pragmas applied via EXEC:
//
//	journal_mode = WAL
//	busy_timeout = 10000
//	synchronous  = NORMAL
//	foreign_keys = ON
//
// Parent directories are created. capacity bounds the queue; the oldest
// entry is evicted when an Append would exceed it.
func OpenSQLiteQueue(path string, capacity int) (*SQLiteQueue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
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
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(queueSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &SQLiteQueue{db: db, capacity: capacity}, nil
}

// Close closes the underlying database.
func (q *SQLiteQueue) Close() error {
	return q.db.Close()
}

func (q *SQLiteQueue) Append(ctx context.Context, e Entry) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin append: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO delivery_queue (payload, enqueued_at) VALUES (?, ?)`,
		string(e.Payload), e.EnqueuedAt); err != nil {
		return fmt.Errorf("store: insert entry: %w", err)
	}

	// Oldest-first eviction down to capacity.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM delivery_queue WHERE id NOT IN (
			SELECT id FROM delivery_queue ORDER BY id DESC LIMIT ?
		)`, q.capacity); err != nil {
		return fmt.Errorf("store: evict: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit append: %w", err)
	}
	return nil
}

// PopOldest removes and returns the oldest entry. The delete commits
// before the caller sees the entry, so re-entry after a crash can at
// worst lose one send outcome, never duplicate a queued envelope.
func (q *SQLiteQueue) PopOldest(ctx context.Context) (*Entry, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin pop: %w", err)
	}
	defer tx.Rollback()

	var id int64
	var e Entry
	var payload string
	err = tx.QueryRowContext(ctx,
		`SELECT id, payload, enqueued_at FROM delivery_queue ORDER BY id ASC LIMIT 1`).
		Scan(&id, &payload, &e.EnqueuedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: select oldest: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM delivery_queue WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("store: delete oldest: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit pop: %w", err)
	}

	e.Payload = []byte(payload)
	return &e, nil
}

func (q *SQLiteQueue) Len(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM delivery_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

func (q *SQLiteQueue) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT payload, enqueued_at FROM delivery_queue ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var payload string
		if err := rows.Scan(&payload, &e.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("store: scan entry: %w", err)
		}
		e.Payload = []byte(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}
