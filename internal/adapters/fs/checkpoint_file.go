// Package fs provides file-system adapters for documents and checkpoints.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/bft-labs/scrubber/internal/domain"
)

// checkpointRecord is the on-disk form of a checkpoint. completed_batches and
// cleaned_texts keep the layout of earlier checkpoint files; batch_sizes
// splits cleaned_texts back into per-batch results.
type checkpointRecord struct {
	RunID            string    `json:"run_id,omitempty" msgpack:"run_id,omitempty"`
	Fingerprint      string    `json:"fingerprint,omitempty" msgpack:"fingerprint,omitempty"`
	BatchSize        int       `json:"batch_size,omitempty" msgpack:"batch_size,omitempty"`
	TotalItems       int       `json:"total_items,omitempty" msgpack:"total_items,omitempty"`
	CompletedBatches []int     `json:"completed_batches" msgpack:"completed_batches"`
	BatchSizes       []int     `json:"batch_sizes" msgpack:"batch_sizes"`
	CleanedTexts     []string  `json:"cleaned_texts" msgpack:"cleaned_texts"`
	UpdatedAt        time.Time `json:"updated_at" msgpack:"updated_at"`
}

func toRecord(cp domain.Checkpoint) checkpointRecord {
	completed := cp.CompletedBatches()
	sizes := make([]int, len(completed))
	for i, idx := range completed {
		sizes[i] = len(cp.Results[idx])
	}
	return checkpointRecord{
		RunID:            cp.RunID,
		Fingerprint:      cp.Fingerprint,
		BatchSize:        cp.BatchSize,
		TotalItems:       cp.TotalItems,
		CompletedBatches: completed,
		BatchSizes:       sizes,
		CleanedTexts:     cp.Accumulated(),
		UpdatedAt:        cp.UpdatedAt,
	}
}

func fromRecord(rec checkpointRecord) (domain.Checkpoint, error) {
	cp := domain.NewCheckpoint(rec.RunID, rec.Fingerprint, rec.BatchSize, rec.TotalItems)
	cp.UpdatedAt = rec.UpdatedAt
	if len(rec.CompletedBatches) == 0 {
		return cp, nil
	}
	if len(rec.BatchSizes) == 0 {
		// Only completed_batches and cleaned_texts: sizes come from the plan.
		cp.UnsplitBatches = append([]int(nil), rec.CompletedBatches...)
		cp.Unsplit = append([]string(nil), rec.CleanedTexts...)
		return cp, nil
	}
	if len(rec.BatchSizes) != len(rec.CompletedBatches) {
		return domain.Checkpoint{}, fmt.Errorf("checkpoint has %d batch sizes for %d batches: %w",
			len(rec.BatchSizes), len(rec.CompletedBatches), domain.ErrCheckpointMismatch)
	}
	// cleaned_texts is ordered by ascending batch index.
	order := make([]int, len(rec.CompletedBatches))
	copy(order, rec.CompletedBatches)
	sizes := make(map[int]int, len(order))
	for i, idx := range rec.CompletedBatches {
		if _, dup := sizes[idx]; dup {
			return domain.Checkpoint{}, fmt.Errorf("checkpoint lists batch %d twice: %w", idx, domain.ErrCheckpointMismatch)
		}
		sizes[idx] = rec.BatchSizes[i]
	}
	sort.Ints(order)

	pos := 0
	for _, idx := range order {
		n := sizes[idx]
		if n < 0 || pos+n > len(rec.CleanedTexts) {
			return domain.Checkpoint{}, fmt.Errorf("checkpoint texts truncated at batch %d: %w", idx, domain.ErrCheckpointMismatch)
		}
		cp.Results[idx] = rec.CleanedTexts[pos : pos+n : pos+n]
		pos += n
	}
	if pos != len(rec.CleanedTexts) {
		return domain.Checkpoint{}, fmt.Errorf("checkpoint has %d texts, batches cover %d: %w",
			len(rec.CleanedTexts), pos, domain.ErrCheckpointMismatch)
	}
	return cp, nil
}

// codec encodes checkpoint records.
type codec struct {
	marshal   func(v interface{}) ([]byte, error)
	unmarshal func(data []byte, v interface{}) error
}

var (
	jsonCodec = codec{
		marshal:   func(v interface{}) ([]byte, error) { return json.MarshalIndent(v, "", "  ") },
		unmarshal: json.Unmarshal,
	}
	msgpackCodec = codec{
		marshal:   msgpack.Marshal,
		unmarshal: msgpack.Unmarshal,
	}
)

// CheckpointFileRepository implements ports.CheckpointStore using a single
// file. Files ending in ".msgpack" are MessagePack, anything else JSON.
type CheckpointFileRepository struct {
	path  string
	codec codec
}

// NewCheckpointFileRepository creates a repository for the given file path.
func NewCheckpointFileRepository(path string) *CheckpointFileRepository {
	c := jsonCodec
	if strings.EqualFold(filepath.Ext(path), ".msgpack") {
		c = msgpackCodec
	}
	return &CheckpointFileRepository{path: path, codec: c}
}

// Load retrieves the last saved checkpoint from disk.
// Returns an empty checkpoint and nil error if no file exists.
func (r *CheckpointFileRepository) Load(ctx context.Context) (domain.Checkpoint, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Checkpoint{Results: map[int][]string{}}, nil
		}
		return domain.Checkpoint{}, err
	}

	var rec checkpointRecord
	if err := r.codec.unmarshal(data, &rec); err != nil {
		return domain.Checkpoint{}, fmt.Errorf("decode %s: %w", r.path, err)
	}
	return fromRecord(rec)
}

// Save persists the checkpoint atomically.
// Uses atomic write (write to temp file, then rename) to prevent corruption.
func (r *CheckpointFileRepository) Save(ctx context.Context, cp domain.Checkpoint) error {
	data, err := r.codec.marshal(toRecord(cp))
	if err != nil {
		return err
	}
	return writeFileAtomic(r.path, data, 0o600)
}

// Clear removes the checkpoint file. A missing file is not an error.
func (r *CheckpointFileRepository) Clear(ctx context.Context) error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Close is a no-op.
func (r *CheckpointFileRepository) Close() error { return nil }

// Path returns the full path to the checkpoint file.
func (r *CheckpointFileRepository) Path() string {
	return r.path
}

// writeFileAtomic writes data to a temp file next to path and renames it.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
