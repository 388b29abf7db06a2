package ports

import (
	"context"

	"github.com/bft-labs/scrubber/internal/domain"
)

// CheckpointStore handles progress persistence for crash recovery.
// Implementations persist the checkpoint atomically.
type CheckpointStore interface {
	// Load retrieves the last saved checkpoint.
	// Returns an empty checkpoint and nil error if none exists.
	// Returns an error only for actual read failures.
	Load(ctx context.Context) (domain.Checkpoint, error)

	// Save durably overwrites the persisted checkpoint.
	// It is called after every completed batch.
	Save(ctx context.Context, cp domain.Checkpoint) error

	// Clear removes the persisted checkpoint.
	// It is called only after a run has completed end to end.
	Clear(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
