package notify

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

// serveOneSMTP accepts a single SMTP session and returns the DATA payload.
func serveOneSMTP(t *testing.T, ln net.Listener) <-chan string {
	t.Helper()
	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			out <- ""
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		write := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

		write("220 test ESMTP")
		var data strings.Builder
		inData := false
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				out <- data.String()
				return
			}
			if inData {
				if line == ".\r\n" {
					inData = false
					write("250 queued")
					continue
				}
				data.WriteString(line)
				continue
			}
			switch cmd := strings.ToUpper(strings.TrimSpace(line)); {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				write("250 test")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				write("250 ok")
			case cmd == "DATA":
				inData = true
				write("354 go ahead")
			case cmd == "QUIT":
				write("221 bye")
				out <- data.String()
				return
			default:
				write("250 ok")
			}
		}
	}()
	return out
}

func TestSMTPSenderSends(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	got := serveOneSMTP(t, ln)

	host, port, _ := net.SplitHostPort(ln.Addr().String())
	s := NewSMTPSender(host, port, "bookings@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Send(ctx, "cleo@example.com", "Confirmed", "line one\nline two"); err != nil {
		t.Fatalf("send: %v", err)
	}

	msg := <-got
	if !strings.Contains(msg, "Subject: Confirmed\r\n") || !strings.Contains(msg, "To: cleo@example.com\r\n") {
		t.Fatalf("unexpected message: %q", msg)
	}
	if !strings.Contains(msg, "line one\r\nline two") {
		t.Fatalf("body not CRLF normalised: %q", msg)
	}
}

func TestTemplatesRender(t *testing.T) {
	subject, body, err := DefaultTemplates().Render(TemplateAppointmentCancelled, map[string]any{
		"service_name":  "Trim",
		"business_name": "Cut & Co",
		"date":          "2026-03-10",
		"start_time":    "10:00",
		"end_time":      "10:30",
		"initiator":     "customer",
		"reason":        "",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject != "Cancelled: Trim on 2026-03-10 10:00" {
		t.Fatalf("subject = %q", subject)
	}
	if !strings.Contains(body, "cancelled by the customer.") || strings.Contains(body, "Reason") {
		t.Fatalf("body = %q", body)
	}

	if _, _, err := DefaultTemplates().Render("nope", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}
