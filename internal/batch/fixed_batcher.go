package batch

import "github.com/bft-labs/scrubber/internal/domain"

// DefaultSize is the number of texts sent per generator call.
const DefaultSize = 50

// FixedBatcher splits texts into batches of a fixed size. Only the last
// batch may be shorter.
type FixedBatcher struct {
	size int
}

// NewFixedBatcher creates a batcher with the given batch size.
// Sizes below 1 are treated as 1.
func NewFixedBatcher(size int) *FixedBatcher {
	if size < 1 {
		size = 1
	}
	return &FixedBatcher{size: size}
}

// Size returns the configured batch size.
func (b *FixedBatcher) Size() int {
	return b.size
}

// Split partitions texts into consecutive batches with zero-based indices.
// The batch texts share the backing array of the input.
func (b *FixedBatcher) Split(texts []string) []domain.Batch {
	if len(texts) == 0 {
		return nil
	}
	batches := make([]domain.Batch, 0, (len(texts)+b.size-1)/b.size)
	for start := 0; start < len(texts); start += b.size {
		end := start + b.size
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, domain.Batch{
			Index: len(batches),
			Texts: texts[start:end:end],
		})
	}
	return batches
}
