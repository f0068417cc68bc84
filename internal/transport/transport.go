// Package transport delivers finished emails to recipients.
package transport

import "context"

// Email is one outbound message ready for delivery.
type Email struct {
	FromName  string
	FromEmail string
	ReplyTo   string
	To        string
	Subject   string
	TextBody  string
	HTMLBody  string

	TrackingID   string
	EnrollmentID string
}

// Sender delivers one email. Implementations must be safe for
// sequential reuse across batches.
type Sender interface {
	Send(ctx context.Context, msg *Email) error
}
