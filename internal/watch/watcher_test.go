package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bft-labs/scrubber/internal/adapters/log"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcher_RerunsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.jsonl")
	if err := os.WriteFile(path, []byte("a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	w := New(path, 20*time.Millisecond, log.NewNoopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(ctx context.Context) error {
			calls.Add(1)
			return errors.New("failures are logged")
		})
	}()

	waitFor(t, func() bool { return calls.Load() == 1 })

	// Changes to other files in the directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "out.jsonl"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls after unrelated write = %d, want 1", got)
	}

	if err := os.WriteFile(path, []byte("b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return calls.Load() >= 2 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing", "in.jsonl"), 0, log.NewNoopLogger())
	err := w.Run(context.Background(), func(ctx context.Context) error { return nil })
	if err == nil {
		t.Error("expected error for missing directory")
	}
}
