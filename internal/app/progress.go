package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/scrubber/internal/domain"
	"github.com/bft-labs/scrubber/internal/ports"
)

// Phase is a step of a pipeline run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseProcessing
	PhaseWriting
	PhaseDone
	PhaseFailed
)

// String returns a human-readable representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseScanning:
		return "Scanning"
	case PhaseProcessing:
		return "Processing"
	case PhaseWriting:
		return "Writing"
	case PhaseDone:
		return "Done"
	case PhaseFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// MarshalText lets snapshots encode phases by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Snapshot is a point-in-time copy of the run progress.
type Snapshot struct {
	Phase            Phase           `json:"phase"`
	RunID            string          `json:"run_id,omitempty"`
	Runs             int             `json:"runs"`
	Items            int             `json:"items"`
	TotalBatches     int             `json:"total_batches"`
	CompletedBatches int             `json:"completed_batches"`
	FallbackBatches  int             `json:"fallback_batches"`
	RateLimits       int             `json:"rate_limits"`
	StartedAt        time.Time       `json:"started_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	LastError        string          `json:"last_error,omitempty"`
	LastSummary      *domain.Summary `json:"last_summary,omitempty"`
}

// Progress tracks the phase of the current run and implements
// ports.EventEmitter so it can be fed by the pipeline.
type Progress struct {
	mu     sync.RWMutex
	snap   Snapshot
	logger ports.Logger
	now    func() time.Time
}

// NewProgress creates a tracker in PhaseIdle.
func NewProgress(logger ports.Logger) *Progress {
	return &Progress{logger: logger, now: time.Now}
}

// Phase returns the current phase.
func (p *Progress) Phase() Phase {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap.Phase
}

// Snapshot returns a copy of the current progress.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.snap
	if s.LastSummary != nil {
		sum := *s.LastSummary
		s.LastSummary = &sum
	}
	return s
}

func validTransition(from, to Phase) bool {
	switch from {
	case PhaseIdle, PhaseDone, PhaseFailed:
		return to == PhaseScanning
	case PhaseScanning:
		return to == PhaseProcessing || to == PhaseFailed
	case PhaseProcessing:
		return to == PhaseWriting || to == PhaseFailed
	case PhaseWriting:
		return to == PhaseDone || to == PhaseFailed
	}
	return false
}

// TransitionTo moves to a new phase.
// Returns an error wrapping domain.ErrInvalidTransition if the move is not valid.
func (p *Progress) TransitionTo(next Phase, reason string) error {
	p.mu.Lock()
	prev := p.snap.Phase
	if !validTransition(prev, next) {
		p.mu.Unlock()
		return fmt.Errorf("%s -> %s: %w", prev, next, domain.ErrInvalidTransition)
	}
	now := p.now()
	p.snap.Phase = next
	p.snap.UpdatedAt = now
	if next == PhaseScanning {
		lastSummary := p.snap.LastSummary
		p.snap = Snapshot{
			Phase:       PhaseScanning,
			Runs:        p.snap.Runs + 1,
			StartedAt:   now,
			UpdatedAt:   now,
			LastSummary: lastSummary,
		}
	}
	p.mu.Unlock()

	p.logger.Debug("phase transition",
		ports.String("from", prev.String()),
		ports.String("to", next.String()),
		ports.String("reason", reason),
	)
	return nil
}

// Fail moves to PhaseFailed and records err. It is a no-op when the run is
// not in progress.
func (p *Progress) Fail(err error) {
	p.mu.Lock()
	if !validTransition(p.snap.Phase, PhaseFailed) {
		p.mu.Unlock()
		return
	}
	prev := p.snap.Phase
	p.snap.Phase = PhaseFailed
	p.snap.UpdatedAt = p.now()
	if err != nil {
		p.snap.LastError = err.Error()
	}
	p.mu.Unlock()

	p.logger.Debug("phase transition",
		ports.String("from", prev.String()),
		ports.String("to", PhaseFailed.String()),
		ports.Err(err),
	)
}

// SetPlan records the size of the current run.
func (p *Progress) SetPlan(runID string, items, batches, completed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.RunID = runID
	p.snap.Items = items
	p.snap.TotalBatches = batches
	p.snap.CompletedBatches = completed
	p.snap.UpdatedAt = p.now()
}

// OnBatchComplete counts a finished batch.
func (p *Progress) OnBatchComplete(ev domain.BatchEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.CompletedBatches++
	if ev.Fallback {
		p.snap.FallbackBatches++
	}
	p.snap.RateLimits += ev.RateLimits
	p.snap.UpdatedAt = p.now()
}

// OnRunComplete stores the summary of the finished run.
func (p *Progress) OnRunComplete(summary domain.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.LastSummary = &summary
	p.snap.UpdatedAt = p.now()
}
