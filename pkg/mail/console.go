package mail

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ConsoleSender logs messages instead of delivering them. Used when no
// SendGrid key is configured and in tests.
type ConsoleSender struct {
	logger *zap.Logger

	mu   sync.Mutex
	sent []Message
}

var _ Sender = (*ConsoleSender)(nil)

// NewConsoleSender returns a sender writing to logger.
func NewConsoleSender(logger *zap.Logger) *ConsoleSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSender{logger: logger}
}

// Send renders msg and logs it.
func (s *ConsoleSender) Send(_ context.Context, msg *Message) error {
	if err := msg.Render(); err != nil {
		return err
	}
	to := make([]string, 0, len(msg.To))
	for _, a := range msg.To {
		to = append(to, a.String())
	}
	s.logger.Info("email",
		zap.Strings("to", to),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.TextContent),
	)

	s.mu.Lock()
	s.sent = append(s.sent, *msg)
	s.mu.Unlock()
	return nil
}

// Sent returns a copy of every message sent so far.
func (s *ConsoleSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
