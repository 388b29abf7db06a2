//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/bft-labs/scrubber/internal/domain"
)

func setupTestStore(t *testing.T) *CheckpointStore {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := Open(ctx, dbURL, "integration-"+uuid.New().String()[:8])
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() {
		s.Clear(context.Background())
		s.Close()
	})
	return s
}

func TestIntegration_SaveLoadClear(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	cp, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cp.IsEmpty() {
		t.Fatalf("expected empty checkpoint, got %+v", cp)
	}

	cp = domain.NewCheckpoint(uuid.New().String(), "fp", 2, 3)
	cp.Record(1, []string{"c"})
	cp.Record(0, []string{"a", "b"})
	if err := s.Save(ctx, cp); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	acc := got.Accumulated()
	if len(acc) != 3 || acc[0] != "a" || acc[2] != "c" {
		t.Errorf("Accumulated = %q", acc)
	}
	if got.Fingerprint != "fp" || got.BatchSize != 2 || got.TotalItems != 3 {
		t.Errorf("metadata = %+v", got)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load after Clear: %v", err)
	}
	if !got.IsEmpty() {
		t.Errorf("checkpoint not cleared")
	}
}
