// Package scrubber sanitizes tagged spans of a line-oriented document with a
// text-generation service, in resumable batches.
//
// Example usage:
//
//	cfg := scrubber.DefaultConfig()
//	cfg.Input = "train.jsonl"
//	cfg.Output = "train.clean.jsonl"
//	cfg.APIKey = os.Getenv("GEMINI_API_KEY")
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	s, err := scrubber.New(ctx, cfg, zerolog.New(os.Stderr))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//	summary, err := s.Run(ctx)
package scrubber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/scrubber/internal/adapters/echo"
	"github.com/bft-labs/scrubber/internal/adapters/fs"
	"github.com/bft-labs/scrubber/internal/adapters/gemini"
	logAdapter "github.com/bft-labs/scrubber/internal/adapters/log"
	natsAdapter "github.com/bft-labs/scrubber/internal/adapters/nats"
	"github.com/bft-labs/scrubber/internal/adapters/postgres"
	"github.com/bft-labs/scrubber/internal/adapters/sqlite"
	"github.com/bft-labs/scrubber/internal/adapters/status"
	"github.com/bft-labs/scrubber/internal/app"
	"github.com/bft-labs/scrubber/internal/batch"
	"github.com/bft-labs/scrubber/internal/cliconfig"
	"github.com/bft-labs/scrubber/internal/domain"
	"github.com/bft-labs/scrubber/internal/extract"
	"github.com/bft-labs/scrubber/internal/ports"
	"github.com/bft-labs/scrubber/internal/reassemble"
	"github.com/bft-labs/scrubber/internal/retry"
	"github.com/bft-labs/scrubber/internal/rewrite"
	"github.com/bft-labs/scrubber/internal/watch"
)

// Config holds the configuration for a scrubber.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// Summary reports the outcome of one run.
type Summary = domain.Summary

// Snapshot is the progress view served on /v1/progress.
type Snapshot = app.Snapshot

// Sentinel errors returned by Run, checked with errors.Is.
var (
	ErrInputNotFound      = domain.ErrInputNotFound
	ErrLengthMismatch     = domain.ErrLengthMismatch
	ErrInvalidConfig      = domain.ErrInvalidConfig
	ErrCheckpointMismatch = domain.ErrCheckpointMismatch
)

// DefaultConfig returns a Config with sensible default values.
// With the gemini provider an APIKey must be set before calling New.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Scrubber owns the adapters of one configured pipeline.
type Scrubber struct {
	cfg      Config
	logger   ports.Logger
	pipeline *app.Pipeline
	closers  []func() error
}

// New builds the adapters described by cfg. cfg is expected to be validated.
// The returned Scrubber must be closed to release the checkpoint store and
// the NATS connection.
func New(ctx context.Context, cfg Config, zl zerolog.Logger) (*Scrubber, error) {
	logger := logAdapter.NewZerologAdapterWithLogger(zl).With("input", cfg.Input)
	s := &Scrubber{cfg: cfg, logger: logger}

	checkpoints, err := openCheckpoints(ctx, cfg.Checkpoint)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, checkpoints.Close)

	gen, err := newGenerator(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	var emitter ports.EventEmitter
	if cfg.NATSURL != "" {
		em, err := natsAdapter.Connect(cfg.NATSURL, cfg.NATSToken, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, em.Close)
		emitter = em
	}

	client := rewrite.New(gen, logger, rewrite.Options{
		MaxOutputTokens: cfg.MaxOutputTokens,
		AcceptPercent:   cfg.AcceptPercent,
	})
	controller := retry.New(client, logger, retry.Config{
		MaxAttempts:       cfg.MaxAttempts,
		Backoff:           cfg.RetryBackoff,
		RateLimitCooldown: cfg.RateLimitCooldown,
		MaxRateLimitWaits: cfg.MaxRateLimitWaits,
	})

	s.pipeline = app.NewPipeline(app.PipelineConfig{
		BatchInterval:  cfg.BatchInterval,
		MaxLossPercent: cfg.MaxLossPercent,
	}, app.Deps{
		Documents:   fs.NewDocumentFileStore(cfg.Input, cfg.Output),
		Checkpoints: checkpoints,
		Extractor:   extract.New(cfg.StartTag, cfg.EndTag),
		Batcher:     batch.NewFixedBatcher(cfg.BatchSize),
		Processor:   controller,
		Reassembler: reassemble.New(cfg.StartTag, cfg.EndTag),
		Logger:      logger,
		Emitter:     emitter,
	})
	return s, nil
}

// Run performs a single run. When StatusAddr is set the status server is
// served alongside it and stopped once the run returns.
func (s *Scrubber) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	err := s.serve(ctx, func(ctx context.Context) error {
		var err error
		summary, err = s.pipeline.Run(ctx)
		return err
	})
	return summary, err
}

// Watch runs once and again every time the input file changes, until ctx is
// done. report is called after every run. Failed runs do not stop watching.
func (s *Scrubber) Watch(ctx context.Context, report func(Summary, error)) error {
	w := watch.New(s.cfg.Input, watch.DefaultDebounce, s.logger)
	return s.serve(ctx, func(ctx context.Context) error {
		return w.Run(ctx, func(ctx context.Context) error {
			summary, err := s.pipeline.Run(ctx)
			if report != nil && ctx.Err() == nil {
				report(summary, err)
			}
			return err
		})
	})
}

// Progress returns a snapshot of the current or last run.
func (s *Scrubber) Progress() Snapshot {
	return s.pipeline.Progress().Snapshot()
}

// Close releases the checkpoint store and the event connection.
func (s *Scrubber) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// serve runs fn, plus the status server when configured. The server is
// stopped as soon as fn returns.
func (s *Scrubber) serve(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.cfg.StatusAddr == "" {
		return fn(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	srvCtx, stop := context.WithCancel(gctx)
	defer stop()

	srv := status.NewServer(s.cfg.StatusAddr, func() any { return s.Progress() }, s.logger)
	g.Go(func() error {
		return srv.Run(srvCtx)
	})
	g.Go(func() error {
		defer stop()
		return fn(gctx)
	})
	return g.Wait()
}

// openCheckpoints picks a checkpoint backend from its location:
// sqlite://path?name=key, postgres://... or a plain file path.
func openCheckpoints(ctx context.Context, location string) (ports.CheckpointStore, error) {
	switch {
	case strings.HasPrefix(location, "sqlite://"):
		u, err := url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("parse checkpoint location: %w", err)
		}
		store, err := sqlite.Open(ctx, u.Host+u.Path, u.Query().Get("name"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite checkpoint: %w", err)
		}
		return store, nil

	case strings.HasPrefix(location, "postgres://"), strings.HasPrefix(location, "postgresql://"):
		dsn, name, err := splitCheckpointName(location)
		if err != nil {
			return nil, err
		}
		store, err := postgres.Open(ctx, dsn, name)
		if err != nil {
			return nil, fmt.Errorf("open postgres checkpoint: %w", err)
		}
		return store, nil

	default:
		return fs.NewCheckpointFileRepository(location), nil
	}
}

// splitCheckpointName removes the name query parameter, which the postgres
// driver would otherwise send as a runtime parameter.
func splitCheckpointName(location string) (string, string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("parse checkpoint location: %w", err)
	}
	q := u.Query()
	name := q.Get("name")
	q.Del("name")
	u.RawQuery = q.Encode()
	return u.String(), name, nil
}

func newGenerator(cfg Config) (ports.Generator, error) {
	switch cfg.Provider {
	case cliconfig.ProviderGemini:
		client := &http.Client{Timeout: cfg.HTTPTimeout}
		return gemini.NewGenerator(client, cfg.BaseURL, cfg.Model, cfg.APIKey), nil
	case cliconfig.ProviderEcho:
		return echo.NewGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q: %w", cfg.Provider, domain.ErrInvalidConfig)
	}
}
