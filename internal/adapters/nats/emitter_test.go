package nats

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/bft-labs/scrubber/internal/adapters/log"
	"github.com/bft-labs/scrubber/internal/domain"
	"github.com/bft-labs/scrubber/internal/ports"
)

type message struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs []message
	err  error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, message{subject: subject, data: data})
	return nil
}

type mockLogger struct {
	warns int
}

func (m *mockLogger) Debug(string, ...ports.Field) {}
func (m *mockLogger) Info(string, ...ports.Field)  {}
func (m *mockLogger) Warn(string, ...ports.Field)  { m.warns++ }
func (m *mockLogger) Error(string, ...ports.Field) {}

func TestEmitter_Publishes(t *testing.T) {
	p := &fakePublisher{}
	e := newEmitter(p, log.NewNoopLogger())

	e.OnBatchComplete(domain.BatchEvent{RunID: "r", Index: 3, Total: 5, Size: 50, Fallback: true})
	e.OnRunComplete(domain.Summary{RunID: "r", Items: 10, Output: "out.jsonl"})

	if len(p.msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(p.msgs))
	}
	if p.msgs[0].subject != SubjectBatchCompleted || p.msgs[1].subject != SubjectRunCompleted {
		t.Errorf("subjects = %q, %q", p.msgs[0].subject, p.msgs[1].subject)
	}

	var ev domain.BatchEvent
	if err := json.Unmarshal(p.msgs[0].data, &ev); err != nil {
		t.Fatalf("decode batch event: %v", err)
	}
	if ev.Index != 3 || !ev.Fallback || ev.Size != 50 {
		t.Errorf("batch event = %+v", ev)
	}

	var s domain.Summary
	if err := json.Unmarshal(p.msgs[1].data, &s); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if s.Items != 10 || s.Output != "out.jsonl" {
		t.Errorf("summary = %+v", s)
	}
}

func TestEmitter_PublishErrorIsLogged(t *testing.T) {
	logger := &mockLogger{}
	e := newEmitter(&fakePublisher{err: errors.New("no responders")}, logger)

	e.OnBatchComplete(domain.BatchEvent{})
	if logger.warns != 1 {
		t.Errorf("warns = %d, want 1", logger.warns)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close without connection: %v", err)
	}
}
