package mailer

import (
	"context"
	"sync"
)

// Sender is the interface that email providers implement.
type Sender interface {
	Send(ctx context.Context, email *Email) error
}

// Session is implemented by senders that hold a connection open across
// many messages. Open authenticates once; Close releases the connection.
type Session interface {
	Sender
	Open(ctx context.Context) error
	Close() error
}

// NopSender records messages without delivering them.
// Used for dry runs and tests.
type NopSender struct {
	mu   sync.Mutex
	sent []*Email
}

// Send implements Sender.
func (s *NopSender) Send(_ context.Context, email *Email) error {
	s.mu.Lock()
	s.sent = append(s.sent, email)
	s.mu.Unlock()
	return nil
}

// Sent returns a copy of every recorded message.
func (s *NopSender) Sent() []*Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Email, len(s.sent))
	copy(out, s.sent)
	return out
}
