package mailer

import (
	"context"
	"log/slog"
)

// LogSender is a sender implementation that logs outbound mail and always
// succeeds. Useful in development and tests where no SMTP relay exists.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new log-backed sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Name returns the name of this sender.
func (s *LogSender) Name() string {
	return "log"
}

// Send logs the message details instead of delivering it.
func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	s.logger.InfoContext(ctx, "log sender: mail sent",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Int("body_bytes", len(msg.HTML)),
	)
	return nil
}
