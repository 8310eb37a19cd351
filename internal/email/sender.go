// Package email provides the mail transports used to deliver verdict
// notifications.
package email

import "context"

// Sender delivers a single HTML message.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}
