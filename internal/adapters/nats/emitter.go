// Package nats publishes pipeline events to NATS subjects.
package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bft-labs/scrubber/internal/domain"
	"github.com/bft-labs/scrubber/internal/ports"
)

// Subjects events are published on.
const (
	SubjectBatchCompleted = "scrubber.batch.completed"
	SubjectRunCompleted   = "scrubber.run.completed"
)

// publisher is the subset of *nats.Conn the emitter needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

// Emitter implements ports.EventEmitter on NATS.
// Publish failures are logged and never interrupt the run.
type Emitter struct {
	conn   publisher
	nc     *nats.Conn
	logger ports.Logger
}

// Connect dials url and returns an emitter owning the connection.
func Connect(url, token string, logger ports.Logger) (*Emitter, error) {
	opts := []nats.Option{
		nats.Name("scrubber"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", ports.Err(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Emitter{conn: nc, nc: nc, logger: logger}, nil
}

func newEmitter(p publisher, logger ports.Logger) *Emitter {
	return &Emitter{conn: p, logger: logger}
}

// OnBatchComplete publishes the batch event.
func (e *Emitter) OnBatchComplete(ev domain.BatchEvent) {
	e.publish(SubjectBatchCompleted, ev)
}

// OnRunComplete publishes the run summary.
func (e *Emitter) OnRunComplete(summary domain.Summary) {
	e.publish(SubjectRunCompleted, summary)
}

func (e *Emitter) publish(subject string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		e.logger.Error("marshal event", ports.String("subject", subject), ports.Err(err))
		return
	}
	if err := e.conn.Publish(subject, payload); err != nil {
		e.logger.Warn("publish event", ports.String("subject", subject), ports.Err(err))
	}
}

// Close flushes pending messages and closes the connection.
func (e *Emitter) Close() error {
	if e.nc == nil {
		return nil
	}
	if err := e.nc.Drain(); err != nil {
		e.nc.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}
