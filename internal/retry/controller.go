// Package retry drives a rewriter with bounded retries, rate-limit cooldowns
// and a pass-through fallback, so every batch yields exactly as many texts as
// it was given.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/bft-labs/scrubber/internal/domain"
	"github.com/bft-labs/scrubber/internal/ports"
)

// Default controller settings.
const (
	DefaultMaxAttempts       = 2
	DefaultBackoff           = 10 * time.Second
	DefaultRateLimitCooldown = 65 * time.Second

	errPreviewWidth = 80
)

// Rewriter rewrites a batch of texts.
type Rewriter interface {
	Rewrite(ctx context.Context, texts []string) ([]string, error)
}

// State is a step of the per-batch state machine.
type State int

const (
	StateAttempting State = iota
	StateRateLimited
	StateFailed
	StateSucceeded
	StateFallback
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateAttempting:
		return "Attempting"
	case StateRateLimited:
		return "RateLimited"
	case StateFailed:
		return "Failed"
	case StateSucceeded:
		return "Succeeded"
	case StateFallback:
		return "Fallback"
	default:
		return "Unknown"
	}
}

// Config configures the controller.
type Config struct {
	// MaxAttempts is the number of non-rate-limit failures tolerated before
	// falling back. Default: 2
	MaxAttempts int

	// Backoff is the pause after a failed attempt. Default: 10 seconds
	Backoff time.Duration

	// BackoffMax lets the pause double up to this value. Zero keeps the
	// pause fixed at Backoff.
	BackoffMax time.Duration

	// BackoffJitter is the ± fraction applied to backoff pauses. Default: 0
	BackoffJitter float64

	// RateLimitCooldown is the pause after a rate-limit error, long enough
	// to reset the service's quota window. Default: 65 seconds
	RateLimitCooldown time.Duration

	// MaxRateLimitWaits bounds the cooldowns spent on one batch before it
	// falls back. Zero means unlimited.
	MaxRateLimitWaits int

	// Sleep performs the pauses. Default: SleepContext
	Sleep Sleeper
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       DefaultMaxAttempts,
		Backoff:           DefaultBackoff,
		RateLimitCooldown: DefaultRateLimitCooldown,
		Sleep:             SleepContext,
	}
}

// Result is the terminal outcome for one batch. Texts always has the batch's length.
type Result struct {
	Texts []string

	// Outcome is StateSucceeded or StateFallback.
	Outcome State

	// Attempts counts rewriter calls, rate-limited ones included.
	Attempts int

	// Failures counts non-rate-limit failures.
	Failures int

	// RateLimits counts rate-limit errors.
	RateLimits int

	// LastErr is the last error seen, if any.
	LastErr error
}

// Fallback reports whether the original texts were passed through.
func (r Result) Fallback() bool {
	return r.Outcome == StateFallback
}

// Controller runs the per-batch retry state machine.
type Controller struct {
	rw     Rewriter
	logger ports.Logger
	cfg    Config
}

// New creates a controller. Zero config fields take their defaults.
func New(rw Rewriter, logger ports.Logger, cfg Config) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if cfg.BackoffMax < cfg.Backoff {
		cfg.BackoffMax = cfg.Backoff
	}
	if cfg.RateLimitCooldown < 0 {
		cfg.RateLimitCooldown = 0
	}
	if cfg.Sleep == nil {
		cfg.Sleep = SleepContext
	}
	return &Controller{rw: rw, logger: logger, cfg: cfg}
}

// Process rewrites one batch. Failures are contained: the result either
// carries the rewritten texts or a copy of the originals. The only error
// returned is the context's, in which case the batch is unfinished.
func (c *Controller) Process(ctx context.Context, b domain.Batch) (Result, error) {
	var res Result
	back := newBackoff(c.cfg.Backoff, c.cfg.BackoffMax, c.cfg.BackoffJitter)
	state := StateAttempting

	for {
		switch state {
		case StateAttempting:
			if err := ctx.Err(); err != nil {
				return res, err
			}
			res.Attempts++
			out, err := c.rw.Rewrite(ctx, b.Texts)
			switch {
			case err == nil && len(out) == len(b.Texts):
				res.Texts = out
				state = StateSucceeded
			case err == nil:
				res.LastErr = fmt.Errorf("rewriter returned %d/%d items: %w", len(out), len(b.Texts), domain.ErrProtocol)
				state = StateFailed
			case ctx.Err() != nil:
				return res, ctx.Err()
			case IsRateLimit(err):
				res.LastErr = err
				state = StateRateLimited
			default:
				res.LastErr = err
				state = StateFailed
			}

		case StateRateLimited:
			res.RateLimits++
			if c.cfg.MaxRateLimitWaits > 0 && res.RateLimits > c.cfg.MaxRateLimitWaits {
				c.logger.Warn("rate limit waits exhausted",
					ports.Int("batch", b.Index),
					ports.Int("waits", c.cfg.MaxRateLimitWaits),
				)
				state = StateFallback
				continue
			}
			c.logger.Warn("rate limit hit, cooling down",
				ports.Int("batch", b.Index),
				ports.Duration("cooldown", c.cfg.RateLimitCooldown),
			)
			if err := c.cfg.Sleep(ctx, c.cfg.RateLimitCooldown); err != nil {
				return res, err
			}
			state = StateAttempting

		case StateFailed:
			res.Failures++
			if res.Failures >= c.cfg.MaxAttempts {
				state = StateFallback
				continue
			}
			pause := back.Next()
			c.logger.Warn("batch attempt failed",
				ports.Int("batch", b.Index),
				ports.String("attempt", fmt.Sprintf("%d/%d", res.Failures, c.cfg.MaxAttempts)),
				ports.String("error", preview(res.LastErr)),
				ports.Duration("backoff", pause),
			)
			if err := c.cfg.Sleep(ctx, pause); err != nil {
				return res, err
			}
			state = StateAttempting

		case StateSucceeded:
			res.Outcome = StateSucceeded
			return res, nil

		case StateFallback:
			c.logger.Warn("skipping batch, keeping originals",
				ports.Int("batch", b.Index),
				ports.Int("items", b.Size()),
				ports.String("error", preview(res.LastErr)),
			)
			res.Texts = make([]string, len(b.Texts))
			copy(res.Texts, b.Texts)
			res.Outcome = StateFallback
			return res, nil
		}
	}
}

// IsRateLimit reports whether err signals an exhausted service quota.
// Errors already classified as protocol or service-status errors are never
// rate limits; only untyped generator errors are matched on their text.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}
	if errors.Is(err, domain.ErrProtocol) || errors.Is(err, domain.ErrGeneratorStatus) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota")
}

func preview(err error) string {
	if err == nil {
		return ""
	}
	return runewidth.Truncate(err.Error(), errPreviewWidth, "...")
}
