package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/mail"

	"gopkg.in/gomail.v2"
)

// SMTPConfig holds relay settings.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	FromEmail string
	// TLS false skips certificate checks, for local relays without a valid cert.
	TLS bool
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	from string
	send func(m ...*gomail.Message) error
}

// NewSMTPSender builds a sender for cfg. Port 465 uses implicit TLS, other
// ports upgrade with STARTTLS when the relay offers it.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if !cfg.TLS {
		d.SSL = false
		d.TLSConfig = &tls.Config{ServerName: cfg.Host, InsecureSkipVerify: true} //nolint:gosec
	}

	return &SMTPSender{
		from: (&mail.Address{Name: cfg.FromName, Address: cfg.FromEmail}).String(),
		send: d.DialAndSend,
	}
}

// Send delivers email. gomail has no context support, so the dial runs on its
// own goroutine and Send returns early when ctx is done.
func (s *SMTPSender) Send(ctx context.Context, email Email) error {
	if len(email.To) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := s.message(email)

	done := make(chan error, 1)
	go func() { done <- s.send(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SMTPSender) message(email Email) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", email.To...)

	if len(email.Cc) > 0 {
		msg.SetHeader("Cc", email.Cc...)
	}

	if len(email.Bcc) > 0 {
		msg.SetHeader("Bcc", email.Bcc...)
	}

	msg.SetHeader("Subject", email.Subject)

	if email.HTMLBody != "" {
		msg.SetBody("text/html", email.HTMLBody)
		if email.Body != "" {
			msg.AddAlternative("text/plain", email.Body)
		}
	} else {
		msg.SetBody("text/plain", email.Body)
	}

	return msg
}
