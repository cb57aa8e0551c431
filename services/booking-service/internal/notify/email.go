package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
)

// SMTPSender sends plain text mail over unauthenticated SMTP (Mailpit-compatible).
type SMTPSender struct {
	host string
	addr string
	from string
}

func NewSMTPSender(host, port, from string) *SMTPSender {
	host = strings.TrimSpace(host)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@bookings.local"
	}
	return &SMTPSender{
		host: host,
		addr: net.JoinHostPort(host, strings.TrimSpace(port)),
		from: from,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if err := c.Mail(s.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(buildMessage(s.from, to, subject, body))); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMessage(from, to, subject, body string) string {
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		to,
		subject,
		strings.ReplaceAll(body, "\n", "\r\n"),
	)
}

// LogSender writes emails to the log instead of sending them. Used when no
// SMTP host is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, subject, _ string) error {
	s.logger.InfoContext(ctx, "email (log only)", "to", to, "subject", subject)
	return nil
}
