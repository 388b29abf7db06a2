package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// Checkpoint represents persistent progress for crash recovery.
// It is saved after every completed batch.
//
// Results are keyed by batch index; Accumulated concatenates them in ascending
// key order, so the flattened texts stay aligned with the extracted spans no
// matter in which order batches were completed.
type Checkpoint struct {
	// RunID identifies the run that created the checkpoint.
	RunID string

	// Fingerprint identifies the input texts and batch size the results belong to.
	Fingerprint string

	// BatchSize is the batch size the results were produced with.
	BatchSize int

	// TotalItems is the number of spans in the input.
	TotalItems int

	// Results holds the rewritten texts of every completed batch.
	Results map[int][]string

	// UpdatedAt is the time of the last Record call.
	UpdatedAt time.Time

	// UnsplitBatches and Unsplit hold results stored without per-batch
	// sizes: the completed indices and their texts concatenated in ascending
	// index order. SplitUnsplit assigns them to Results once the batch plan
	// is known.
	UnsplitBatches []int
	Unsplit        []string
}

// NewCheckpoint creates an empty checkpoint for a batch plan.
func NewCheckpoint(runID, fingerprint string, batchSize, totalItems int) Checkpoint {
	return Checkpoint{
		RunID:       runID,
		Fingerprint: fingerprint,
		BatchSize:   batchSize,
		TotalItems:  totalItems,
		Results:     make(map[int][]string),
	}
}

// IsEmpty returns true if no batch has been recorded.
func (c Checkpoint) IsEmpty() bool {
	return len(c.Results) == 0 && len(c.UnsplitBatches) == 0
}

// HasUnsplit reports whether some results still wait for SplitUnsplit.
func (c Checkpoint) HasUnsplit() bool {
	return len(c.UnsplitBatches) > 0
}

// SplitUnsplit cuts Unsplit into per-batch results using the sizes of
// batches. The texts must cover the completed batches exactly; otherwise
// ErrCheckpointMismatch is returned and the checkpoint is left unchanged.
func (c *Checkpoint) SplitUnsplit(batches []Batch) error {
	order := make([]int, len(c.UnsplitBatches))
	copy(order, c.UnsplitBatches)
	sort.Ints(order)

	results := make(map[int][]string, len(order)+len(c.Results))
	for k, v := range c.Results {
		results[k] = v
	}
	pos := 0
	for i, idx := range order {
		if i > 0 && order[i-1] == idx {
			return fmt.Errorf("batch %d listed twice: %w", idx, ErrCheckpointMismatch)
		}
		if idx < 0 || idx >= len(batches) {
			return fmt.Errorf("batch %d outside plan of %d batches: %w", idx, len(batches), ErrCheckpointMismatch)
		}
		n := batches[idx].Size()
		if pos+n > len(c.Unsplit) {
			return fmt.Errorf("texts end inside batch %d: %w", idx, ErrCheckpointMismatch)
		}
		results[idx] = c.Unsplit[pos : pos+n : pos+n]
		pos += n
	}
	if pos != len(c.Unsplit) {
		return fmt.Errorf("%d texts for batches covering %d: %w", len(c.Unsplit), pos, ErrCheckpointMismatch)
	}

	c.Results = results
	c.UnsplitBatches = nil
	c.Unsplit = nil
	return nil
}

// Completed reports whether the batch with the given index has been recorded.
func (c Checkpoint) Completed(index int) bool {
	_, ok := c.Results[index]
	return ok
}

// Record stores the rewritten texts of a batch.
func (c *Checkpoint) Record(index int, texts []string) {
	if c.Results == nil {
		c.Results = make(map[int][]string)
	}
	cp := make([]string, len(texts))
	copy(cp, texts)
	c.Results[index] = cp
	c.UpdatedAt = time.Now().UTC()
}

// Forget drops a recorded batch so that it is processed again.
func (c *Checkpoint) Forget(index int) {
	delete(c.Results, index)
}

// CompletedBatches returns the recorded batch indices in ascending order.
func (c Checkpoint) CompletedBatches() []int {
	keys := make([]int, 0, len(c.Results))
	for k := range c.Results {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Len returns the number of accumulated texts.
func (c Checkpoint) Len() int {
	n := 0
	for _, texts := range c.Results {
		n += len(texts)
	}
	return n
}

// Accumulated returns all recorded texts ordered by batch index.
func (c Checkpoint) Accumulated() []string {
	out := make([]string, 0, c.Len())
	for _, k := range c.CompletedBatches() {
		out = append(out, c.Results[k]...)
	}
	return out
}

// Matches returns ErrCheckpointMismatch if the checkpoint was produced for a
// different plan. An empty checkpoint matches any plan.
func (c Checkpoint) Matches(fingerprint string, batchSize, totalItems int) error {
	if c.IsEmpty() {
		return nil
	}
	if c.Fingerprint != fingerprint {
		return fmt.Errorf("fingerprint %.12s != %.12s: %w", c.Fingerprint, fingerprint, ErrCheckpointMismatch)
	}
	if c.BatchSize != batchSize {
		return fmt.Errorf("batch size %d != %d: %w", c.BatchSize, batchSize, ErrCheckpointMismatch)
	}
	if c.TotalItems != totalItems {
		return fmt.Errorf("total items %d != %d: %w", c.TotalItems, totalItems, ErrCheckpointMismatch)
	}
	return nil
}

// Fingerprint hashes the batch size and the ordered texts.
func Fingerprint(batchSize int, texts []string) string {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(batchSize))
	h.Write(buf[:])
	for _, t := range texts {
		binary.BigEndian.PutUint64(buf[:], uint64(len(t)))
		h.Write(buf[:])
		h.Write([]byte(t))
	}
	return hex.EncodeToString(h.Sum(nil))
}
