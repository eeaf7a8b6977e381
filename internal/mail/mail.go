// AngelaMos | 2026
// mail.go

package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rzkfyn/ujikom-app-be/internal/config"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

func NewSender(cfg config.MailConfig, logger *slog.Logger) Sender {
	if cfg.Driver == config.MailDriverSMTP {
		return &SMTPSender{cfg: cfg}
	}
	return &LogSender{logger: logger}
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "mail message",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}

type SMTPSender struct {
	cfg config.MailConfig
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	var conn net.Conn
	var err error
	if s.cfg.Port == 465 {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{
			ServerName: s.cfg.Host,
			MinVersion: tls.VersionTLS12,
		})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close() //nolint:errcheck // cleanup on handshake failure
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close() //nolint:errcheck // connection is closed after QUIT

	if ok, _ := client.Extension("STARTTLS"); ok && s.cfg.Port != 465 {
		if err := client.StartTLS(&tls.Config{
			ServerName: s.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}

	if _, err := w.Write(buildMessage(s.cfg.From, msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}

	return client.Quit()
}

func buildMessage(from string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

func VerificationCode(to, name, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Verify your email address",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour verification code is %s. It expires in %s.\n",
			name, code, ttl,
		),
	}
}

func PasswordReset(to, name, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Reset your password",
		Body: fmt.Sprintf(
			"Hi %s,\n\nUse the code %s to reset your password. It expires in %s.\n"+
				"If you did not request this, you can ignore this email.\n",
			name, code, ttl,
		),
	}
}
