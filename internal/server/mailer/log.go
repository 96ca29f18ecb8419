package mailer

import (
	"context"

	"github.com/dmitrijs2005/gophaccount/internal/logging"
)

// LogSender records emails in the log instead of sending them.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(log logging.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, email Email) error {
	if len(email.To) == 0 {
		return ErrNoRecipients
	}
	s.log.Info(ctx, "email not sent, no smtp relay configured", "to", email.To, "subject", email.Subject)
	s.log.Debug(ctx, "email body", "text", email.Body)
	return nil
}
