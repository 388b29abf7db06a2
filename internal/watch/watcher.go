// Package watch reruns a function whenever a file changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/scrubber/internal/ports"
)

// DefaultDebounce is the quiet period after the last change before a rerun.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors a single file via its parent directory, so that editors
// replacing the file are seen as well.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   ports.Logger
}

// New creates a watcher for path.
func New(path string, debounce time.Duration, logger ports.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{path: path, debounce: debounce, logger: logger}
}

// Run calls fn once, then again after every debounced write to the file,
// until ctx is done. Calls never overlap. Errors from fn are logged and do
// not stop the watcher.
func (w *Watcher) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	name := filepath.Base(w.path)

	w.call(ctx, fn)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.logger.Info("input changed, rerunning", ports.String("path", w.path))
			w.call(ctx, fn)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", ports.Err(err))
		}
	}
}

func (w *Watcher) call(ctx context.Context, fn func(ctx context.Context) error) {
	if err := fn(ctx); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		w.logger.Error("run failed", ports.Err(err))
	}
}
