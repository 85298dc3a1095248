package natsadapter

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// Subscriber implements ports.SurfaceSubscriber over a plain NATS
// connection, relaying a view's ops to its socket.
type Subscriber struct {
	conn *nats.Conn
}

// NewSubscriber creates a subscriber with its own connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Subscriber{conn: conn}, nil
}

func (s *Subscriber) SubscribeView(view string, handler func(data []byte)) (func(), error) {
	sub, err := s.conn.Subscribe(SurfaceSubject(view), func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", view, err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Close drains the connection.
func (s *Subscriber) Close() {
	_ = s.conn.Drain()
}

// Conn exposes the connection for readiness checks.
func (s *Subscriber) Conn() *nats.Conn {
	return s.conn
}
