// Package notify formats verdict notifications and hands them to a mail
// transport. Delivery problems never fail the caller; they come back as
// user-visible notices.
package notify

import (
	"bytes"
	"context"
	"html/template"

	"github.com/jmerrifield20/TrafficSentry/internal/email"
	"go.uber.org/zap"
)

// Notice levels.
const (
	LevelSuccess = "success"
	LevelWarning = "warning"
)

// Notice is a message shown to the end user after a request.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Warning builds a warning notice.
func Warning(msg string) Notice { return Notice{Level: LevelWarning, Message: msg} }

// MsgFieldsRequired is reported when subject, recipient or body is empty.
const MsgFieldsRequired = "All fields are required!"

// MsgSent is reported after a successful hand-off to the transport.
const MsgSent = "Email sent successfully!"

// Notifier sends verdict messages through an email.Sender.
type Notifier struct {
	sender email.Sender
	logger *zap.Logger
}

// New creates a Notifier.
func New(sender email.Sender, logger *zap.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger}
}

// Send hands the message to the transport exactly once. It returns a
// warning notice, without calling the transport, if any field is empty.
func (n *Notifier) Send(ctx context.Context, subject, recipient, htmlBody string) Notice {
	if subject == "" || recipient == "" || htmlBody == "" {
		n.logger.Warn("notification skipped: missing fields",
			zap.Bool("has_subject", subject != ""),
			zap.Bool("has_recipient", recipient != ""),
			zap.Bool("has_body", htmlBody != ""),
		)
		return Warning(MsgFieldsRequired)
	}

	if err := n.sender.Send(ctx, recipient, subject, htmlBody); err != nil {
		n.logger.Warn("notification failed", zap.String("to", recipient), zap.Error(err))
		return Warning("Failed to send email: " + err.Error())
	}

	n.logger.Info("notification sent", zap.String("to", recipient), zap.String("subject", subject))
	return Notice{Level: LevelSuccess, Message: MsgSent}
}

// Subject returns the notification subject for a destination host.
func Subject(host string) string {
	return "Traffic verdict for " + host
}

var bodyTemplate = template.Must(template.New("verdict").Parse(`<html>
    <body>
        <h2><strong>The network traffic is classified as: {{.Label}}</strong></h2>
        <p>and the prediction confidence is {{printf "%.6f" .Score}}</p>
        {{- if .ID}}
        <p><small>evaluation {{.ID}}</small></p>
        {{- end}}
    </body>
</html>
`))

// VerdictBody renders the HTML body for a verdict. id may be empty.
func VerdictBody(label string, score float64, id string) (string, error) {
	var buf bytes.Buffer
	err := bodyTemplate.Execute(&buf, struct {
		Label string
		Score float64
		ID    string
	}{label, score, id})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
