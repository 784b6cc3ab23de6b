// Package mail sends transactional email for the lending service.
package mail

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/metrics"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages. Tests and mail-disabled deployments use the
// no-op or a recording fake.
type Sender interface {
	Send(msg Message) error
}

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   *zap.Logger
}

// NewSMTPSender creates an SMTP sender.
func NewSMTPSender(host string, port int, username, password, from string, logger *zap.Logger) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		logger:   logger,
	}
}

// Send delivers one message.
func (s *SMTPSender) Send(msg Message) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if err := smtp.SendMail(addr, auth, s.from, []string{msg.To}, []byte(b.String())); err != nil {
		metrics.MailSendErrorsTotal.Inc()
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}

	s.logger.Debug("mail sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))

	return nil
}

// NopSender drops messages, logging them at debug level. Used when mail is
// disabled.
type NopSender struct {
	logger *zap.Logger
}

// NewNopSender creates a sender that logs instead of delivering.
func NewNopSender(logger *zap.Logger) *NopSender {
	return &NopSender{logger: logger}
}

// Send logs the message and discards it.
func (s *NopSender) Send(msg Message) error {
	s.logger.Debug("mail disabled, dropping message",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}
