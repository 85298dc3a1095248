package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/pintfinder/internal/core/domain"
)

const (
	surfaceStream = "PINTFINDER_SURFACE"
	surfacePrefix = "pintfinder.surface."
)

// SurfaceSubject is the subject carrying the ops of one browser view.
func SurfaceSubject(view string) string {
	return surfacePrefix + view
}

// Publisher implements ports.SurfacePublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the surface stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      surfaceStream,
		Subjects:  []string{surfacePrefix + ">"},
		Retention: nats.LimitsPolicy,
		MaxAge:    10 * time.Minute,
		Storage:   nats.MemoryStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishSurfaceOp publishes op on its view's subject.
func (p *Publisher) PublishSurfaceOp(ctx context.Context, op domain.SurfaceOp) error {
	data, err := json.Marshal(op)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SurfaceSubject(op.View), data, nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
