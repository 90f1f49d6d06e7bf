// ABOUTME: Outbound mail delivery for account verification messages
// ABOUTME: SMTP sender plus a log-only sender for unconfigured deployments

package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

// Sender delivers a plain-text message to a single recipient
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender delivers mail through a standard SMTP relay with PLAIN auth
type SMTPSender struct {
	addr     string // host:port
	from     string
	username string
	password string
	host     string
	logger   *slog.Logger
}

// NewSMTPSender creates a sender for the given relay. Username and
// password may be empty for relays that accept unauthenticated local
// submission.
func NewSMTPSender(host string, port int, from, username, password string, logger *slog.Logger) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{
		addr:     fmt.Sprintf("%s:%d", host, port),
		from:     from,
		username: username,
		password: password,
		host:     host,
		logger:   logger.With("component", "mail"),
	}
}

// Send delivers the message. The context bounds are advisory only:
// net/smtp has no context support, so cancellation is checked before
// dialing but not mid-transaction.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := []byte("From: " + s.from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body + "\r\n")

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if err := smtp.SendMail(s.addr, auth, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}

	s.logger.Debug("mail sent", "to", to, "subject", subject)
	return nil
}

// LogSender records outbound mail in the log instead of delivering it.
// Used when no SMTP relay is configured, so development setups work
// without a mail server.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only sender
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger.With("component", "mail")}
}

// Send logs the message and reports success
func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.logger.Info("mail delivery skipped (no SMTP configured)", "to", to, "subject", subject, "body", body)
	return nil
}

// Ensure both senders implement Sender
var (
	_ Sender = (*SMTPSender)(nil)
	_ Sender = (*LogSender)(nil)
)
