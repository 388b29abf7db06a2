package app

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/bft-labs/scrubber/internal/domain"
)

func TestNewProgress(t *testing.T) {
	p := NewProgress(&mockLogger{})

	if p == nil {
		t.Fatal("NewProgress returned nil")
	}
	if p.Phase() != PhaseIdle {
		t.Errorf("initial phase = %v, want PhaseIdle", p.Phase())
	}
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseIdle, "Idle"},
		{PhaseScanning, "Scanning"},
		{PhaseProcessing, "Processing"},
		{PhaseWriting, "Writing"},
		{PhaseDone, "Done"},
		{PhaseFailed, "Failed"},
		{Phase(99), "Unknown"},
	}

	for _, tt := range tests {
		got := tt.phase.String()
		if got != tt.want {
			t.Errorf("Phase(%d).String() = %s, want %s", tt.phase, got, tt.want)
		}
	}
}

func TestProgress_TransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		path    []Phase
		wantErr bool
	}{
		{"happy path", []Phase{PhaseScanning, PhaseProcessing, PhaseWriting, PhaseDone}, false},
		{"rerun after done", []Phase{PhaseScanning, PhaseProcessing, PhaseWriting, PhaseDone, PhaseScanning}, false},
		{"fail while scanning", []Phase{PhaseScanning, PhaseFailed, PhaseScanning}, false},
		{"fail while writing", []Phase{PhaseScanning, PhaseProcessing, PhaseWriting, PhaseFailed}, false},
		{"skip scanning", []Phase{PhaseProcessing}, true},
		{"idle to done", []Phase{PhaseDone}, true},
		{"skip writing", []Phase{PhaseScanning, PhaseProcessing, PhaseDone}, true},
		{"idle to failed", []Phase{PhaseFailed}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgress(&mockLogger{})
			var err error
			for _, next := range tt.path {
				if err = p.TransitionTo(next, "test"); err != nil {
					break
				}
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
				t.Errorf("err = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func TestProgress_Fail(t *testing.T) {
	p := NewProgress(&mockLogger{})

	p.Fail(errors.New("ignored"))
	if p.Phase() != PhaseIdle {
		t.Errorf("Fail from Idle moved to %v", p.Phase())
	}

	_ = p.TransitionTo(PhaseScanning, "start")
	p.Fail(errors.New("input not found"))
	snap := p.Snapshot()
	if snap.Phase != PhaseFailed || snap.LastError != "input not found" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestProgress_CountsAndReset(t *testing.T) {
	p := NewProgress(&mockLogger{})
	_ = p.TransitionTo(PhaseScanning, "start")
	p.SetPlan("run-1", 10, 3, 1)
	p.OnBatchComplete(domain.BatchEvent{Index: 1, RateLimits: 2})
	p.OnBatchComplete(domain.BatchEvent{Index: 2, Fallback: true})
	p.OnRunComplete(domain.Summary{RunID: "run-1", Items: 10})

	snap := p.Snapshot()
	if snap.RunID != "run-1" || snap.Items != 10 || snap.TotalBatches != 3 {
		t.Errorf("plan = %+v", snap)
	}
	if snap.CompletedBatches != 3 || snap.FallbackBatches != 1 || snap.RateLimits != 2 {
		t.Errorf("counts = %+v", snap)
	}
	if snap.Runs != 1 {
		t.Errorf("Runs = %d, want 1", snap.Runs)
	}

	// A new run resets the counters but keeps the last summary.
	_ = p.TransitionTo(PhaseProcessing, "")
	_ = p.TransitionTo(PhaseWriting, "")
	_ = p.TransitionTo(PhaseDone, "")
	if err := p.TransitionTo(PhaseScanning, "rerun"); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	snap = p.Snapshot()
	if snap.CompletedBatches != 0 || snap.Runs != 2 || snap.LastSummary == nil || snap.LastSummary.Items != 10 {
		t.Errorf("after rerun = %+v", snap)
	}
}

func TestProgress_SnapshotJSON(t *testing.T) {
	p := NewProgress(&mockLogger{})
	_ = p.TransitionTo(PhaseScanning, "start")

	b, err := json.Marshal(p.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"phase":"Scanning"`) {
		t.Errorf("json = %s", b)
	}
}

func TestProgress_ConcurrentAccess(t *testing.T) {
	p := NewProgress(&mockLogger{})
	_ = p.TransitionTo(PhaseScanning, "start")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.OnBatchComplete(domain.BatchEvent{})
		}()
		go func() {
			defer wg.Done()
			_ = p.Snapshot()
		}()
	}
	wg.Wait()

	if got := p.Snapshot().CompletedBatches; got != 10 {
		t.Errorf("CompletedBatches = %d, want 10", got)
	}
}
