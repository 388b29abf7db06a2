package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bft-labs/scrubber/internal/domain"
)

func sampleCheckpoint() domain.Checkpoint {
	cp := domain.NewCheckpoint("run-1", "abc", 2, 5)
	cp.Record(1, []string{"c", "d"})
	cp.Record(0, []string{"a", "b"})
	return cp
}

func TestCheckpointFile_LoadMissing(t *testing.T) {
	repo := NewCheckpointFileRepository(filepath.Join(t.TempDir(), "checkpoint.json"))

	cp, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cp.IsEmpty() {
		t.Errorf("expected empty checkpoint, got %+v", cp)
	}
}

func TestCheckpointFile_RoundTrip(t *testing.T) {
	for _, name := range []string{"checkpoint.json", "checkpoint.msgpack"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := NewCheckpointFileRepository(filepath.Join(t.TempDir(), "state", name))

			if err := repo.Save(ctx, sampleCheckpoint()); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := repo.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got.RunID != "run-1" || got.Fingerprint != "abc" || got.BatchSize != 2 || got.TotalItems != 5 {
				t.Errorf("metadata = %+v", got)
			}
			acc := got.Accumulated()
			want := []string{"a", "b", "c", "d"}
			if len(acc) != len(want) {
				t.Fatalf("Accumulated = %q", acc)
			}
			for i := range want {
				if acc[i] != want[i] {
					t.Errorf("Accumulated[%d] = %q, want %q", i, acc[i], want[i])
				}
			}

			if err := repo.Clear(ctx); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			if _, err := os.Stat(repo.Path()); !os.IsNotExist(err) {
				t.Errorf("checkpoint file still present: %v", err)
			}
			if err := repo.Clear(ctx); err != nil {
				t.Errorf("second Clear: %v", err)
			}
		})
	}
}

func TestCheckpointFile_JSONLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	repo := NewCheckpointFileRepository(path)
	if err := repo.Save(context.Background(), sampleCheckpoint()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"completed_batches", "cleaned_texts", "batch_sizes"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %s", key, b)
		}
	}
	var completed []int
	if err := json.Unmarshal(raw["completed_batches"], &completed); err != nil {
		t.Fatalf("completed_batches: %v", err)
	}
	if len(completed) != 2 || completed[0] != 0 || completed[1] != 1 {
		t.Errorf("completed_batches = %v, want [0 1]", completed)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestCheckpointFile_RejectsInconsistentRecords(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"sizes for some batches only", `{"completed_batches":[0,1],"batch_sizes":[1],"cleaned_texts":["a","b"]}`},
		{"texts too short", `{"completed_batches":[0,1],"batch_sizes":[2,2],"cleaned_texts":["a","b","c"]}`},
		{"texts too long", `{"completed_batches":[0],"batch_sizes":[1],"cleaned_texts":["a","b"]}`},
		{"duplicate batch", `{"completed_batches":[0,0],"batch_sizes":[1,1],"cleaned_texts":["a","b"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "checkpoint.json")
			if err := os.WriteFile(path, []byte(tt.body), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := NewCheckpointFileRepository(path).Load(context.Background())
			if !errors.Is(err, domain.ErrCheckpointMismatch) {
				t.Errorf("Load = %v, want ErrCheckpointMismatch", err)
			}
		})
	}
}

func TestCheckpointFile_LoadsRecordWithoutSizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	body := `{"completed_batches":[0,1],"cleaned_texts":["a","b","c"]}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cp, err := NewCheckpointFileRepository(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cp.IsEmpty() || !cp.HasUnsplit() || len(cp.Results) != 0 {
		t.Fatalf("checkpoint = %+v, want unsplit results", cp)
	}
	if fmt.Sprint(cp.UnsplitBatches) != "[0 1]" || strings.Join(cp.Unsplit, ",") != "a,b,c" {
		t.Errorf("unsplit = %v %q", cp.UnsplitBatches, cp.Unsplit)
	}
}

func TestCheckpointFile_UnorderedCompletedList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	body := `{"completed_batches":[1,0],"batch_sizes":[1,2],"cleaned_texts":["a","b","c"]}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cp, err := NewCheckpointFileRepository(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cp.Results[0]) != 2 || cp.Results[1][0] != "c" {
		t.Errorf("Results = %v", cp.Results)
	}
}

func TestCheckpointFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCheckpointFileRepository(path).Load(context.Background()); err == nil {
		t.Error("expected error for corrupt checkpoint")
	}
}

func TestDocumentFileStore(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.jsonl")
	out := filepath.Join(dir, "out", "out.jsonl")
	store := NewDocumentFileStore(in, out)
	ctx := context.Background()

	if _, err := store.Read(ctx); !errors.Is(err, domain.ErrInputNotFound) {
		t.Fatalf("Read(missing) = %v, want ErrInputNotFound", err)
	}

	raw := "line one\nline two\r\nno newline"
	if err := os.WriteFile(in, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if doc.Len() != 3 {
		t.Errorf("Len = %d, want 3", doc.Len())
	}
	if err := store.Write(ctx, doc); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(b) != raw {
		t.Errorf("output = %q, want %q", b, raw)
	}
	if store.OutputPath() != out {
		t.Errorf("OutputPath = %q", store.OutputPath())
	}
}
