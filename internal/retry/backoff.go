package retry

import (
	"context"
	"math/rand"
	"time"
)

// backoff yields pause durations between failed attempts. With initial equal
// to max it is a fixed pause; otherwise it doubles up to max.
type backoff struct {
	initial time.Duration
	max     time.Duration
	jitter  float64
	current time.Duration
}

// newBackoff creates a new backoff with the given initial and max durations.
// jitter is the ± fraction applied to every pause (0 disables it).
func newBackoff(initial, max time.Duration, jitter float64) *backoff {
	if max < initial {
		max = initial
	}
	return &backoff{
		initial: initial,
		max:     max,
		jitter:  jitter,
		current: initial,
	}
}

// Next returns the pause for this failure and grows the next one.
func (b *backoff) Next() time.Duration {
	d := b.current
	if b.jitter > 0 {
		d = time.Duration(float64(d) + float64(d)*b.jitter*(rand.Float64()*2-1))
	}

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
