// Package email delivers transactional mail. The SMTP sender covers real
// deployments; the console sender logs messages for development.
package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/webstarter/api/internal/logging"
	"github.com/webstarter/api/internal/server/config"
)

// Sender delivers a single plain-text message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewSender picks the sender implementation from config.
func NewSender(cfg *config.Config, l logging.Logger) Sender {
	if cfg.EmailProvider == "smtp" {
		return NewSMTPSender(cfg)
	}
	return NewConsoleSender(l)
}

// SMTPSender sends mail through a single SMTP relay with PLAIN auth.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTPSender(cfg *config.Config) *SMTPSender {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		auth: auth,
		from: cfg.EmailFrom,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", s.from, to, subject, body)
	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send error: %w", err)
	}
	return nil
}

// ConsoleSender writes the message to the log instead of delivering it.
type ConsoleSender struct {
	logger logging.Logger
}

func NewConsoleSender(l logging.Logger) *ConsoleSender {
	return &ConsoleSender{logger: l.With("module", "email")}
}

func (s *ConsoleSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.Info(ctx, "email (console provider)", "to", to, "subject", subject, "body", body)
	return nil
}
