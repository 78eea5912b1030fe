// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

// Package notify delivers account-lifecycle messages (confirmation and
// password-reset links) to an email address. Delivery is fire-and-forget
// from the caller's perspective: failures are surfaced, never retried here.
package notify

import (
	"context"
	"log/slog"
)

// Message is a single outbound notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers a message. Implementations must honor ctx cancellation
// so a slow transport cannot stall the calling request.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes notifications to the log instead of delivering them.
// Used in development and tests, where the link in the body is read straight
// from the log output.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send logs the message and reports success.
func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.logger.InfoContext(ctx, "notification issued",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
