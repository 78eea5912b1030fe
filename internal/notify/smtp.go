// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/samber/oops"
)

// SMTPConfig holds the settings for the SMTP notifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier delivers messages over SMTP with STARTTLS. The connection
// deadline tracks the caller's context so an unresponsive mail server fails
// the send instead of hanging the request.
type SMTPNotifier struct {
	cfg SMTPConfig
}

// NewSMTPNotifier creates an SMTPNotifier.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("smtp host cannot be empty")
	}
	if cfg.Port <= 0 {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").
			With("port", cfg.Port).
			Errorf("smtp port must be positive")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("smtp from address cannot be empty")
	}
	return &SMTPNotifier{cfg: cfg}, nil
}

// Send delivers one message. The full SMTP exchange runs under the context
// deadline via the connection deadline.
func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(n.cfg.Host, fmt.Sprintf("%d", n.cfg.Port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("operation", "dial smtp").
			With("addr", addr).
			Wrap(err)
	}
	defer conn.Close() //nolint:errcheck // close after Quit is best effort

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return oops.Code("NOTIFY_SEND_FAILED").
				With("operation", "set deadline").
				Wrap(err)
		}
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("operation", "smtp handshake").
			Wrap(err)
	}
	defer client.Close() //nolint:errcheck // close after Quit is best effort

	if ok, _ := client.Extension("STARTTLS"); ok {
		// ServerName is required, crypto/tls rejects an empty config.
		if err := client.StartTLS(&tls.Config{ServerName: n.cfg.Host}); err != nil {
			return oops.Code("NOTIFY_SEND_FAILED").
				With("operation", "starttls").
				Wrap(err)
		}
	}

	if n.cfg.Username != "" {
		auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return oops.Code("NOTIFY_SEND_FAILED").
				With("operation", "auth").
				Wrap(err)
		}
	}

	if err := client.Mail(n.cfg.From); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("operation", "mail from").
			Wrap(err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("operation", "rcpt to").
			Wrap(err)
	}

	w, err := client.Data()
	if err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("operation", "data").
			Wrap(err)
	}
	if _, err := fmt.Fprintf(w, "From: %s\r\nTo: %s\r\nSubject: %s\r\nDate: %s\r\n\r\n%s\r\n",
		n.cfg.From, msg.To, msg.Subject, time.Now().Format(time.RFC1123Z), msg.Body); err != nil {
		_ = w.Close() //nolint:errcheck // write error takes precedence
		return oops.Code("NOTIFY_SEND_FAILED").
			With("operation", "write body").
			Wrap(err)
	}
	if err := w.Close(); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("operation", "finish data").
			Wrap(err)
	}

	if err := client.Quit(); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("operation", "quit").
			Wrap(err)
	}
	return nil
}

var _ Notifier = (*SMTPNotifier)(nil)
