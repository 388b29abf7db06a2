//go:build integration

package nats

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bft-labs/scrubber/internal/adapters/log"
	"github.com/bft-labs/scrubber/internal/domain"
)

func skipWithoutNATS(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	return url
}

func TestIntegration_BatchEvent(t *testing.T) {
	natsURL := skipWithoutNATS(t)

	sub, err := nats.Connect(natsURL)
	if err != nil {
		t.Fatalf("failed to connect subscriber: %v", err)
	}
	defer sub.Close()

	received := make(chan domain.BatchEvent, 1)
	if _, err := sub.Subscribe(SubjectBatchCompleted, func(msg *nats.Msg) {
		var ev domain.BatchEvent
		json.Unmarshal(msg.Data, &ev)
		received <- ev
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	sub.Flush()

	e, err := Connect(natsURL, "", log.NewNoopLogger())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer e.Close()

	e.OnBatchComplete(domain.BatchEvent{RunID: "integration", Index: 7})

	select {
	case ev := <-received:
		if ev.RunID != "integration" || ev.Index != 7 {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
