package domain

import "time"

// Summary describes a finished run.
type Summary struct {
	RunID            string        `json:"run_id"`
	Items            int           `json:"items"`
	Batches          int           `json:"batches"`
	ResumedBatches   int           `json:"resumed_batches"`
	SanitizedBatches int           `json:"sanitized_batches"`
	FallbackBatches  int           `json:"fallback_batches"`
	FallbackItems    int           `json:"fallback_items"`
	Lost             int           `json:"lost"`
	LossPercent      float64       `json:"loss_percent"`
	Output           string        `json:"output"`
	Duration         time.Duration `json:"duration"`
}

// BatchEvent is emitted after a batch has been processed and checkpointed.
type BatchEvent struct {
	RunID      string        `json:"run_id"`
	Index      int           `json:"index"`
	Total      int           `json:"total"`
	Size       int           `json:"size"`
	Fallback   bool          `json:"fallback"`
	Attempts   int           `json:"attempts"`
	RateLimits int           `json:"rate_limits"`
	Duration   time.Duration `json:"duration"`
}
