// Package sqlite stores checkpoints in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bft-labs/scrubber/internal/domain"
)

// DefaultName is the checkpoint name used when none is given.
const DefaultName = "default"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS checkpoint_runs (
	name TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	batch_size INTEGER NOT NULL,
	total_items INTEGER NOT NULL,
	updated_at_utc TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS checkpoint_batches (
	name TEXT NOT NULL,
	batch_index INTEGER NOT NULL,
	position INTEGER NOT NULL,
	text TEXT NOT NULL,
	PRIMARY KEY (name, batch_index, position)
)`,
}

// CheckpointStore implements ports.CheckpointStore on SQLite.
type CheckpointStore struct {
	db   *sql.DB
	name string
}

// Open opens (or creates) the database at path and prepares the schema.
func Open(ctx context.Context, path, name string) (*CheckpointStore, error) {
	if name == "" {
		name = DefaultName
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &CheckpointStore{db: db, name: name}, nil
}

// Load reads the checkpoint stored under the store's name.
func (s *CheckpointStore) Load(ctx context.Context) (domain.Checkpoint, error) {
	var (
		runID, fp, updated string
		batchSize, total   int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, fingerprint, batch_size, total_items, updated_at_utc FROM checkpoint_runs WHERE name = ?`,
		s.name).Scan(&runID, &fp, &batchSize, &total, &updated)
	if err == sql.ErrNoRows {
		return domain.Checkpoint{Results: map[int][]string{}}, nil
	}
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("load checkpoint run: %w", err)
	}

	cp := domain.NewCheckpoint(runID, fp, batchSize, total)
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		cp.UpdatedAt = t
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_index, text FROM checkpoint_batches WHERE name = ? ORDER BY batch_index, position`,
		s.name)
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("load checkpoint batches: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			idx  int
			text string
		)
		if err := rows.Scan(&idx, &text); err != nil {
			return domain.Checkpoint{}, fmt.Errorf("scan checkpoint batch: %w", err)
		}
		cp.Results[idx] = append(cp.Results[idx], text)
	}
	if err := rows.Err(); err != nil {
		return domain.Checkpoint{}, fmt.Errorf("load checkpoint batches: %w", err)
	}
	return cp, nil
}

// Save replaces the stored checkpoint in a single transaction.
func (s *CheckpointStore) Save(ctx context.Context, cp domain.Checkpoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoint_batches WHERE name = ?`, s.name); err != nil {
		return fmt.Errorf("delete batches: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO checkpoint_runs (name, run_id, fingerprint, batch_size, total_items, updated_at_utc)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	run_id = excluded.run_id,
	fingerprint = excluded.fingerprint,
	batch_size = excluded.batch_size,
	total_items = excluded.total_items,
	updated_at_utc = excluded.updated_at_utc`,
		s.name, cp.RunID, cp.Fingerprint, cp.BatchSize, cp.TotalItems,
		cp.UpdatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO checkpoint_batches (name, batch_index, position, text) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, idx := range cp.CompletedBatches() {
		for pos, text := range cp.Results[idx] {
			if _, err := stmt.ExecContext(ctx, s.name, idx, pos, text); err != nil {
				return fmt.Errorf("insert batch %d: %w", idx, err)
			}
		}
	}
	return tx.Commit()
}

// Clear removes the stored checkpoint.
func (s *CheckpointStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoint_batches WHERE name = ?`, s.name); err != nil {
		return fmt.Errorf("delete batches: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoint_runs WHERE name = ?`, s.name); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return tx.Commit()
}

// Close closes the database.
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}
