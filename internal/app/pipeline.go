// Package app drives a sanitization run: extract, batch, rewrite with
// checkpoints, reassemble and write.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/scrubber/internal/batch"
	"github.com/bft-labs/scrubber/internal/domain"
	"github.com/bft-labs/scrubber/internal/extract"
	"github.com/bft-labs/scrubber/internal/ports"
	"github.com/bft-labs/scrubber/internal/reassemble"
	"github.com/bft-labs/scrubber/internal/retry"
)

// Default pipeline settings.
const (
	DefaultBatchInterval  = 5 * time.Second
	DefaultMaxLossPercent = 5.0
)

// PipelineConfig contains configuration for a run.
type PipelineConfig struct {
	// BatchInterval is the pause between generator batches. Default: 5 seconds
	BatchInterval time.Duration

	// MaxLossPercent is the largest share of missing rewritten texts that is
	// padded with originals instead of failing the run. Default: 5
	MaxLossPercent float64

	// NewRunID generates run identifiers. Default: uuid.NewString
	NewRunID func() string

	// Sleep performs the inter-batch pause. Default: retry.SleepContext
	Sleep retry.Sleeper
}

func (c *PipelineConfig) defaults() {
	if c.BatchInterval < 0 {
		c.BatchInterval = 0
	}
	if c.MaxLossPercent < 0 {
		c.MaxLossPercent = 0
	}
	if c.NewRunID == nil {
		c.NewRunID = uuid.NewString
	}
	if c.Sleep == nil {
		c.Sleep = retry.SleepContext
	}
}

// BatchProcessor turns a batch into exactly as many rewritten texts.
type BatchProcessor interface {
	Process(ctx context.Context, b domain.Batch) (retry.Result, error)
}

// Deps are the collaborators of a pipeline.
type Deps struct {
	Documents   ports.DocumentStore
	Checkpoints ports.CheckpointStore
	Extractor   *extract.Extractor
	Batcher     batch.Batcher
	Processor   BatchProcessor
	Reassembler *reassemble.Reassembler
	Logger      ports.Logger

	// Emitter is optional.
	Emitter ports.EventEmitter

	// Progress is optional; a private tracker is used when nil.
	Progress *Progress
}

// Pipeline orchestrates one sanitization run at a time.
type Pipeline struct {
	cfg  PipelineConfig
	deps Deps
}

// NewPipeline creates a pipeline with the given dependencies.
func NewPipeline(cfg PipelineConfig, deps Deps) *Pipeline {
	cfg.defaults()
	if deps.Progress == nil {
		deps.Progress = NewProgress(deps.Logger)
	}
	return &Pipeline{cfg: cfg, deps: deps}
}

// Progress returns the tracker fed by this pipeline.
func (p *Pipeline) Progress() *Progress {
	return p.deps.Progress
}

// Run executes a full run. On success the output document is written and
// the checkpoint cleared. A missing input yields domain.ErrInputNotFound; a
// cancelled context leaves the checkpoint of completed batches in place.
func (p *Pipeline) Run(ctx context.Context) (domain.Summary, error) {
	start := time.Now()
	runID := p.cfg.NewRunID()
	logger := ports.WithFields(p.deps.Logger, ports.String("run_id", runID))

	if err := p.deps.Progress.TransitionTo(PhaseScanning, "run started"); err != nil {
		return domain.Summary{}, err
	}

	r := &run{Pipeline: p, id: runID, logger: logger}
	summary, err := r.execute(ctx)
	summary.Duration = time.Since(start)
	if err != nil {
		p.deps.Progress.Fail(err)
		return summary, err
	}

	if p.deps.Emitter != nil {
		p.deps.Emitter.OnRunComplete(summary)
	}
	p.deps.Progress.OnRunComplete(summary)
	if err := p.deps.Progress.TransitionTo(PhaseDone, "output written"); err != nil {
		logger.Warn("progress transition", ports.Err(err))
	}
	logger.Info("run complete",
		ports.Int("items", summary.Items),
		ports.Int("sanitized_batches", summary.SanitizedBatches),
		ports.Int("fallback_batches", summary.FallbackBatches),
		ports.Float64("loss_percent", summary.LossPercent),
		ports.String("output", summary.Output),
		ports.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// run holds the state of a single Run call.
type run struct {
	*Pipeline
	id     string
	logger ports.Logger
}

func (r *run) execute(ctx context.Context) (domain.Summary, error) {
	summary := domain.Summary{RunID: r.id}

	doc, err := r.deps.Documents.Read(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrInputNotFound) {
			r.logger.Error("input not found", ports.Err(err))
		}
		return summary, err
	}

	spans := r.deps.Extractor.Extract(doc)
	texts := domain.SpanTexts(spans)
	batches := r.deps.Batcher.Split(texts)
	size := r.deps.Batcher.Size()
	summary.Items = len(texts)
	summary.Batches = len(batches)
	r.logger.Info("scanned input",
		ports.Int("lines", doc.Len()),
		ports.Int("items", len(texts)),
		ports.Int("batches", len(batches)),
		ports.Int("batch_size", size),
	)

	cp := r.loadCheckpoint(ctx, domain.Fingerprint(size, texts), size, batches)
	summary.ResumedBatches = len(cp.Results)
	r.deps.Progress.SetPlan(r.id, len(texts), len(batches), len(cp.Results))

	if err := r.deps.Progress.TransitionTo(PhaseProcessing, "plan ready"); err != nil {
		return summary, err
	}

	pending := make([]domain.Batch, 0, len(batches))
	for _, b := range batches {
		if !cp.Completed(b.Index) {
			pending = append(pending, b)
		}
	}

	for i, b := range pending {
		t0 := time.Now()
		res, err := r.deps.Processor.Process(ctx, b)
		if err != nil {
			r.logger.Warn("run interrupted", ports.Int("batch", b.Index), ports.Err(err))
			return summary, err
		}
		if res.Fallback() {
			summary.FallbackBatches++
			summary.FallbackItems += b.Size()
		} else {
			summary.SanitizedBatches++
		}

		cp.Record(b.Index, res.Texts)
		if err := r.deps.Checkpoints.Save(ctx, cp); err != nil {
			r.logger.Error("failed to save checkpoint", ports.Int("batch", b.Index), ports.Err(err))
		}

		ev := domain.BatchEvent{
			RunID:      r.id,
			Index:      b.Index,
			Total:      len(batches),
			Size:       b.Size(),
			Fallback:   res.Fallback(),
			Attempts:   res.Attempts,
			RateLimits: res.RateLimits,
			Duration:   time.Since(t0),
		}
		r.deps.Progress.OnBatchComplete(ev)
		if r.deps.Emitter != nil {
			r.deps.Emitter.OnBatchComplete(ev)
		}
		r.logger.Info("batch complete",
			ports.Int("batch", b.Index),
			ports.Int("total", len(batches)),
			ports.Int("items", b.Size()),
			ports.String("outcome", res.Outcome.String()),
			ports.Duration("duration", ev.Duration),
		)

		if i < len(pending)-1 {
			if err := r.cfg.Sleep(ctx, r.cfg.BatchInterval); err != nil {
				return summary, err
			}
		}
	}

	cleaned, err := r.accumulate(cp, batches, &summary)
	if err != nil {
		return summary, err
	}

	if err := r.deps.Progress.TransitionTo(PhaseWriting, "all batches complete"); err != nil {
		return summary, err
	}
	out, err := r.deps.Reassembler.Apply(doc, spans, cleaned)
	if err != nil {
		return summary, fmt.Errorf("reassemble: %w", err)
	}
	if err := r.deps.Documents.Write(ctx, out); err != nil {
		return summary, err
	}
	summary.Output = r.deps.Documents.OutputPath()

	if err := r.deps.Checkpoints.Clear(ctx); err != nil {
		r.logger.Warn("failed to clear checkpoint", ports.Err(err))
	}
	return summary, nil
}

// loadCheckpoint returns the stored checkpoint if it belongs to this plan,
// otherwise a fresh one. Stored batches that disagree with the plan are
// dropped so they get processed again.
func (r *run) loadCheckpoint(ctx context.Context, fp string, size int, batches []domain.Batch) domain.Checkpoint {
	total := 0
	for _, b := range batches {
		total += b.Size()
	}
	fresh := domain.NewCheckpoint(r.id, fp, size, total)

	cp, err := r.deps.Checkpoints.Load(ctx)
	if err != nil {
		r.logger.Error("failed to load checkpoint, starting fresh", ports.Err(err))
		return fresh
	}
	if cp.IsEmpty() {
		return fresh
	}
	if cp.HasUnsplit() {
		if err := cp.SplitUnsplit(batches); err != nil {
			r.logger.Warn("discarding checkpoint without batch sizes", ports.Err(err))
			return fresh
		}
		if cp.Fingerprint == "" {
			cp.Fingerprint, cp.BatchSize, cp.TotalItems = fp, size, total
			r.logger.Info("adopting checkpoint without fingerprint",
				ports.Any("completed", cp.CompletedBatches()),
			)
		}
	}
	if err := cp.Matches(fp, size, total); err != nil {
		r.logger.Warn("discarding checkpoint", ports.Err(err))
		return fresh
	}

	for _, idx := range cp.CompletedBatches() {
		if idx < 0 || idx >= len(batches) || len(cp.Results[idx]) != batches[idx].Size() {
			r.logger.Warn("dropping inconsistent checkpoint batch",
				ports.Int("batch", idx),
				ports.Int("stored", len(cp.Results[idx])),
			)
			cp.Forget(idx)
		}
	}
	if cp.IsEmpty() {
		return fresh
	}
	r.logger.Info("resuming from checkpoint",
		ports.String("checkpoint_run_id", cp.RunID),
		ports.Int("completed_batches", len(cp.Results)),
		ports.Int("batches", len(batches)),
	)
	return cp
}

// accumulate returns exactly one cleaned text per extracted span. Batches
// whose stored result has the wrong length are repaired with their own
// originals when the total loss stays within MaxLossPercent; otherwise the
// run fails.
func (r *run) accumulate(cp domain.Checkpoint, batches []domain.Batch, summary *domain.Summary) ([]string, error) {
	total := 0
	lost := 0
	for _, b := range batches {
		total += b.Size()
		got := len(cp.Results[b.Index])
		if got != b.Size() {
			if got < b.Size() {
				lost += b.Size() - got
			} else {
				lost += got - b.Size()
			}
		}
	}
	if lost == 0 {
		return cp.Accumulated(), nil
	}

	loss := float64(lost) * 100 / float64(total)
	summary.Lost = lost
	summary.LossPercent = loss
	if loss > r.cfg.MaxLossPercent {
		r.logger.Error("too many texts lost",
			ports.Int("lost", lost),
			ports.Int("expected", total),
			ports.Float64("loss_percent", loss),
		)
		return nil, fmt.Errorf("lost %d/%d items (%.1f%% loss): %w",
			lost, total, loss, domain.ErrLengthMismatch)
	}

	r.logger.Warn("acceptable loss, padding with originals",
		ports.Int("lost", lost),
		ports.Int("expected", total),
		ports.Float64("loss_percent", loss),
	)
	cleaned := make([]string, 0, total)
	for _, b := range batches {
		res := cp.Results[b.Index]
		if len(res) > b.Size() {
			res = res[:b.Size()]
		}
		cleaned = append(cleaned, res...)
		cleaned = append(cleaned, b.Texts[len(res):]...)
	}
	return cleaned, nil
}
