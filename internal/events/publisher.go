// Package events publishes verdict events to an event bus so other services
// can react to anomalous traffic.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/TrafficSentry/internal/features"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubject is the NATS subject verdicts are published on.
const DefaultSubject = "traffic.verdicts"

// VerdictEvent is the payload published for every completed evaluation.
type VerdictEvent struct {
	ID         uuid.UUID       `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	SourceIP   string          `json:"source_ip"`
	SourcePort int             `json:"source_port"`
	Host       string          `json:"host"`
	Normalized features.Record `json:"normalized"`
	Score      float64         `json:"score"`
	Anomaly    bool            `json:"anomaly"`
	Label      string          `json:"label"`
}

// Publisher emits verdict events.
type Publisher interface {
	PublishVerdict(ctx context.Context, ev *VerdictEvent) error
	Close()
}

// NATSPublisher publishes events to a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewNATSPublisher connects to url. The connection retries in the background
// if the server is not up yet.
func NewNATSPublisher(url, subject string, logger *zap.Logger) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	conn, err := nats.Connect(url,
		nats.Name("trafficsentry"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	logger.Info("connected to NATS", zap.String("url", url), zap.String("subject", subject))
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}, nil
}

// PublishVerdict implements Publisher.
func (p *NATSPublisher) PublishVerdict(_ context.Context, ev *VerdictEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal verdict event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish verdict event: %w", err)
	}
	p.logger.Debug("published verdict event", zap.String("id", ev.ID.String()), zap.String("label", ev.Label))
	return nil
}

// IsConnected reports whether the underlying connection is up.
func (p *NATSPublisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
	p.logger.Info("disconnected from NATS")
}

// NoopPublisher discards events. Used when no bus is configured.
type NoopPublisher struct{}

// PublishVerdict implements Publisher.
func (NoopPublisher) PublishVerdict(context.Context, *VerdictEvent) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() {}
