package transport

import (
	"context"

	"github.com/ignite/outreach-engine/internal/pkg/logger"
)

// LogSender writes messages to the log instead of delivering them.
// Used in development and when SES is disabled.
type LogSender struct{}

// NewLogSender creates a log-only sender.
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Send logs the message envelope and drops the body.
func (s *LogSender) Send(ctx context.Context, msg *Email) error {
	logger.Info("dry-run send",
		"to", logger.RedactEmail(msg.To),
		"from", msg.FromEmail,
		"subject", msg.Subject,
		"tracking_id", msg.TrackingID)
	return nil
}
