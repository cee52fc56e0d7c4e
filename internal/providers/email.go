package providers

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"sitewatch/internal/config"
	"sitewatch/internal/models"
)

// EmailSender delivers notifications over SMTP.
type EmailSender struct {
	cfg config.Config
}

func NewEmailSender(cfg config.Config) *EmailSender {
	return &EmailSender{cfg: cfg}
}

func (s *EmailSender) Send(ctx context.Context, msg models.OutboundMessage) error {
	if !strings.Contains(msg.Recipient, "@") {
		return fmt.Errorf("invalid email address: %s", msg.Recipient)
	}

	server := s.cfg.Email.SMTPServer
	port := s.cfg.Email.SMTPPort
	username := s.cfg.Email.Username
	password := s.cfg.Email.Password
	if server == "" || port == 0 || username == "" || password == "" {
		return fmt.Errorf("missing email configuration: SMTPServer, SMTPPort, Username, or Password is empty")
	}

	subject := msg.Subject
	if subject == "" {
		subject = "sitewatch notification"
	}
	body := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.cfg.Email.FromName, msg.Recipient, subject, msg.Body))

	auth := smtp.PlainAuth("", username, password, server)
	addr := fmt.Sprintf("%s:%d", server, port)

	// net/smtp has no context support; bound the call so the dispatcher's
	// deadline is honored.
	return callWithContext(ctx, func() error {
		if err := smtp.SendMail(addr, auth, username, []string{msg.Recipient}, body); err != nil {
			return fmt.Errorf("failed to send email to %s: %w", msg.Recipient, err)
		}
		return nil
	})
}

// callWithContext runs fn and returns early with the context error if the
// deadline passes first. fn's goroutine is left to finish on its own.
func callWithContext(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
