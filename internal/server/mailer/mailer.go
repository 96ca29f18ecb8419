// Package mailer delivers account emails. SMTPSender talks to a real relay
// through gomail; LogSender only logs and is used when no relay is configured.
package mailer

import (
	"context"
	"errors"
)

// ErrNoRecipients is returned when an Email has an empty To list.
var ErrNoRecipients = errors.New("no recipients specified")

// Email is a single outgoing message.
type Email struct {
	To       []string
	Cc       []string
	Bcc      []string
	Subject  string
	Body     string
	HTMLBody string
}

// EmailSender delivers an Email. Implementations must be safe for concurrent use.
type EmailSender interface {
	Send(ctx context.Context, email Email) error
}
