// Package postgres stores checkpoints in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bft-labs/scrubber/internal/domain"
)

// DefaultName is the checkpoint name used when none is given.
const DefaultName = "default"

var schema = []string{`
CREATE TABLE IF NOT EXISTS checkpoint_runs (
	name TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	batch_size INTEGER NOT NULL,
	total_items INTEGER NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS checkpoint_batches (
	name TEXT NOT NULL,
	batch_index INTEGER NOT NULL,
	position INTEGER NOT NULL,
	text TEXT NOT NULL,
	PRIMARY KEY (name, batch_index, position)
)`}

// CheckpointStore implements ports.CheckpointStore on a pgx pool.
type CheckpointStore struct {
	pool *pgxpool.Pool
	name string
}

// Open connects to databaseURL and creates the schema if needed.
func Open(ctx context.Context, databaseURL, name string) (*CheckpointStore, error) {
	if name == "" {
		name = DefaultName
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &CheckpointStore{pool: pool, name: name}, nil
}

// Load reads the checkpoint stored under the store's name.
func (s *CheckpointStore) Load(ctx context.Context) (domain.Checkpoint, error) {
	var cp domain.Checkpoint
	err := s.pool.QueryRow(ctx,
		`SELECT run_id, fingerprint, batch_size, total_items, updated_at FROM checkpoint_runs WHERE name = $1`,
		s.name).Scan(&cp.RunID, &cp.Fingerprint, &cp.BatchSize, &cp.TotalItems, &cp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Checkpoint{Results: map[int][]string{}}, nil
	}
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("load checkpoint run: %w", err)
	}
	cp.Results = make(map[int][]string)

	rows, err := s.pool.Query(ctx,
		`SELECT batch_index, text FROM checkpoint_batches WHERE name = $1 ORDER BY batch_index, position`,
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
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM checkpoint_batches WHERE name = $1`, s.name); err != nil {
		return fmt.Errorf("delete batches: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO checkpoint_runs (name, run_id, fingerprint, batch_size, total_items, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			fingerprint = EXCLUDED.fingerprint,
			batch_size = EXCLUDED.batch_size,
			total_items = EXCLUDED.total_items,
			updated_at = EXCLUDED.updated_at`,
		s.name, cp.RunID, cp.Fingerprint, cp.BatchSize, cp.TotalItems, cp.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	var rows [][]any
	for _, idx := range cp.CompletedBatches() {
		for pos, text := range cp.Results[idx] {
			rows = append(rows, []any{s.name, idx, pos, text})
		}
	}
	if len(rows) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"checkpoint_batches"},
			[]string{"name", "batch_index", "position", "text"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy batches: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// Clear removes the stored checkpoint.
func (s *CheckpointStore) Clear(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `DELETE FROM checkpoint_batches WHERE name = $1`, s.name); err != nil {
		return fmt.Errorf("delete batches: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM checkpoint_runs WHERE name = $1`, s.name); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return tx.Commit(ctx)
}

// Close closes the pool.
func (s *CheckpointStore) Close() error {
	s.pool.Close()
	return nil
}
