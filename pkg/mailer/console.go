package mailer

import (
	"context"

	"go.uber.org/zap"
)

// ConsoleMailer logs messages instead of delivering them. Default backend
// in development.
type ConsoleMailer struct {
	logger *zap.Logger
}

var _ Mailer = (*ConsoleMailer)(nil)

// NewConsoleMailer constructs a console mailer.
func NewConsoleMailer(logger *zap.Logger) *ConsoleMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleMailer{logger: logger}
}

// Send writes each message to the log.
func (m *ConsoleMailer) Send(_ context.Context, messages ...Message) error {
	for _, msg := range messages {
		if msg.ToAddress == "" {
			continue
		}
		m.logger.Info("outgoing email",
			zap.String("to", msg.ToAddress),
			zap.String("subject", msg.Subject),
			zap.String("body", msg.Body))
	}
	return nil
}
