package email

import (
	"context"
	"log/slog"
)

// LogSender writes outgoing email to the logger instead of delivering
// it, for local development without a transactional email account.
// Bodies carry whatever a visitor typed into a form and are logged as
// a byte count only.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{
		logger: logger,
	}
}

func (s *LogSender) Send(_ context.Context, from, recipient Address, subject, body string) error {
	s.logger.Info("email intercepted by log sender",
		"from", from,
		"recipient", recipient,
		"subject", subject,
		"bodyBytes", len(body),
	)
	return nil
}
