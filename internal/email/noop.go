package email

import (
	"context"

	"go.uber.org/zap"
)

// NoopSender logs messages instead of delivering them.
// Used when no SMTP host is configured.
type NoopSender struct {
	logger *zap.Logger
}

// NewNoopSender creates a NoopSender backed by the given logger.
func NewNoopSender(logger *zap.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

// Send logs the message and returns nil.
func (n *NoopSender) Send(_ context.Context, to, subject, htmlBody string) error {
	n.logger.Info("email not sent (noop transport)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(htmlBody)),
	)
	return nil
}
