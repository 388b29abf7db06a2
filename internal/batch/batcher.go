package batch

import "github.com/bft-labs/scrubber/internal/domain"

// Batcher partitions span texts into batches for the generator.
type Batcher interface {
	// Split returns the batches in order. Concatenating the batch texts
	// yields the input slice.
	Split(texts []string) []domain.Batch

	// Size returns the maximum batch size.
	Size() int
}
