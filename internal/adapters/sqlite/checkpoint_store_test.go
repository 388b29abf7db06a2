package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bft-labs/scrubber/internal/domain"
)

func openTestStore(t *testing.T, path, name string) *CheckpointStore {
	t.Helper()
	s, err := Open(context.Background(), path, name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCheckpointStore_LoadEmpty(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "cp.db"), "")

	cp, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cp.IsEmpty() || cp.Results == nil {
		t.Errorf("expected empty checkpoint with map, got %+v", cp)
	}
}

func TestCheckpointStore_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "nested", "cp.db"), "train")

	cp := domain.NewCheckpoint("run-1", "fp", 2, 5)
	cp.Record(2, []string{"e"})
	cp.Record(0, []string{"a", "b"})
	if err := s.Save(ctx, cp); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cp.Record(1, []string{"c", "d"})
	if err := s.Save(ctx, cp); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.RunID != "run-1" || got.Fingerprint != "fp" || got.BatchSize != 2 || got.TotalItems != 5 {
		t.Errorf("metadata = %+v", got)
	}
	acc := got.Accumulated()
	want := []string{"a", "b", "c", "d", "e"}
	if len(acc) != len(want) {
		t.Fatalf("Accumulated = %q, want %q", acc, want)
	}
	for i := range want {
		if acc[i] != want[i] {
			t.Errorf("Accumulated[%d] = %q, want %q", i, acc[i], want[i])
		}
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not restored")
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load after Clear: %v", err)
	}
	if !got.IsEmpty() {
		t.Errorf("checkpoint not cleared: %+v", got)
	}
}

func TestCheckpointStore_NamesAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cp.db")
	a := openTestStore(t, path, "a")

	cp := domain.NewCheckpoint("run-a", "fp", 1, 1)
	cp.Record(0, []string{"x"})
	if err := a.Save(ctx, cp); err != nil {
		t.Fatalf("Save: %v", err)
	}
	a.Close()

	b := openTestStore(t, path, "b")
	got, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.IsEmpty() {
		t.Errorf("store b sees checkpoint of a: %+v", got)
	}
}

func TestCheckpointStore_PreservesText(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "cp.db"), "")

	texts := []string{"", "line\nbreak", "ünïcødé 🙂", `"quoted" 'single'`}
	cp := domain.NewCheckpoint("r", "fp", 4, 4)
	cp.Record(0, texts)
	if err := s.Save(ctx, cp); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i, want := range texts {
		if got.Results[0][i] != want {
			t.Errorf("text[%d] = %q, want %q", i, got.Results[0][i], want)
		}
	}
}
