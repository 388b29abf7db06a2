package ports

import "github.com/bft-labs/scrubber/internal/domain"

// EventEmitter is notified as a run progresses.
// Events are delivered synchronously from the pipeline goroutine, so
// implementations must not block for long.
type EventEmitter interface {
	// OnBatchComplete is called after a batch has been checkpointed.
	OnBatchComplete(ev domain.BatchEvent)

	// OnRunComplete is called after the output document has been written.
	OnRunComplete(summary domain.Summary)
}

// Emitters fans events out to several emitters in order.
type Emitters []EventEmitter

// OnBatchComplete forwards the event to every emitter.
func (e Emitters) OnBatchComplete(ev domain.BatchEvent) {
	for _, em := range e {
		em.OnBatchComplete(ev)
	}
}

// OnRunComplete forwards the summary to every emitter.
func (e Emitters) OnRunComplete(summary domain.Summary) {
	for _, em := range e {
		em.OnRunComplete(summary)
	}
}
