// Package pipeline runs one evaluation: normalise the collected record,
// snapshot it, classify it, then publish and notify the verdict.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/TrafficSentry/internal/collector"
	"github.com/jmerrifield20/TrafficSentry/internal/events"
	"github.com/jmerrifield20/TrafficSentry/internal/features"
	"github.com/jmerrifield20/TrafficSentry/internal/inference"
	"github.com/jmerrifield20/TrafficSentry/internal/notify"
	"github.com/jmerrifield20/TrafficSentry/internal/snapshot"
	"go.uber.org/zap"
)

// Config carries every collaborator the pipeline needs. Nothing is looked
// up from package state.
type Config struct {
	Bounds    *features.Bounds
	Adapter   *inference.Adapter
	Snapshot  snapshot.Writer
	Notifier  *notify.Notifier
	Publisher events.Publisher

	// Recipient receives verdict notifications. Empty disables delivery
	// and yields a warning notice.
	Recipient string
}

// Observer receives timing and outcome callbacks. Any field may be nil.
type Observer struct {
	Inference    func(d time.Duration, err error)
	Verdict      func(v *inference.Verdict)
	Notification func(n notify.Notice)
	Snapshot     func(err error)
}

// Pipeline evaluates observations.
type Pipeline struct {
	cfg      Config
	observer Observer
	logger   *zap.Logger
}

// New validates cfg and returns a Pipeline.
func New(cfg Config, logger *zap.Logger) (*Pipeline, error) {
	if cfg.Bounds == nil {
		return nil, errors.New("pipeline: bounds table is required")
	}
	if cfg.Adapter == nil {
		return nil, errors.New("pipeline: inference adapter is required")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("pipeline: notifier is required")
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NoopPublisher{}
	}
	return &Pipeline{cfg: cfg, logger: logger}, nil
}

// SetObserver installs metric callbacks.
func (p *Pipeline) SetObserver(o Observer) {
	p.observer = o
}

// Bounds returns the bounds table in use.
func (p *Pipeline) Bounds() *features.Bounds { return p.cfg.Bounds }

// Evaluation is the outcome of one request.
type Evaluation struct {
	ID          uuid.UUID              `json:"id"`
	Observation *collector.Observation `json:"observation"`
	Normalized  features.Record        `json:"normalized"`
	Verdict     *inference.Verdict     `json:"verdict,omitempty"`
	Notices     []notify.Notice        `json:"notices"`
}

// Evaluate runs the pipeline for obs. A non-nil error means no verdict was
// produced: a wrapped features error is a configuration problem, an
// *inference.Error is a failed prediction. The returned Evaluation is
// populated as far as the pipeline got, even on error.
func (p *Pipeline) Evaluate(ctx context.Context, obs *collector.Observation) (*Evaluation, error) {
	ev := &Evaluation{ID: uuid.New(), Observation: obs, Notices: []notify.Notice{}}
	log := p.logger.With(zap.String("evaluation_id", ev.ID.String()))

	normalized, err := p.cfg.Bounds.Normalize(obs.Record)
	if err != nil {
		log.Error("normalize record", zap.Error(err))
		return ev, fmt.Errorf("normalize: %w", err)
	}
	ev.Normalized = normalized

	if p.cfg.Snapshot != nil {
		err := p.cfg.Snapshot.Write(normalized)
		if err != nil {
			log.Warn("snapshot write failed", zap.Error(err))
			ev.Notices = append(ev.Notices, notify.Warning("Failed to save snapshot: "+err.Error()))
		}
		if p.observer.Snapshot != nil {
			p.observer.Snapshot(err)
		}
	}

	start := time.Now()
	verdict, err := p.cfg.Adapter.Classify(ctx, normalized)
	if p.observer.Inference != nil {
		p.observer.Inference(time.Since(start), err)
	}
	if err != nil {
		log.Error("prediction failed", zap.Error(err))
		return ev, err
	}
	ev.Verdict = verdict
	if p.observer.Verdict != nil {
		p.observer.Verdict(verdict)
	}
	log.Info("traffic classified",
		zap.String("source_ip", obs.SourceIP),
		zap.Int("source_port", obs.SourcePort),
		zap.Float64("score", verdict.Score),
		zap.String("label", verdict.Label),
	)

	if err := p.cfg.Publisher.PublishVerdict(ctx, &events.VerdictEvent{
		ID:         ev.ID,
		Timestamp:  time.Now().UTC(),
		SourceIP:   obs.SourceIP,
		SourcePort: obs.SourcePort,
		Host:       obs.DestinationHost,
		Normalized: normalized,
		Score:      verdict.Score,
		Anomaly:    verdict.Anomaly,
		Label:      verdict.Label,
	}); err != nil {
		log.Warn("publish verdict event", zap.Error(err))
		ev.Notices = append(ev.Notices, notify.Warning("Failed to publish verdict event: "+err.Error()))
	}

	body, err := notify.VerdictBody(verdict.Label, verdict.Score, ev.ID.String())
	if err != nil {
		log.Warn("render notification body", zap.Error(err))
	}
	notice := p.cfg.Notifier.Send(ctx, notify.Subject(obs.DestinationHost), p.cfg.Recipient, body)
	ev.Notices = append(ev.Notices, notice)
	if p.observer.Notification != nil {
		p.observer.Notification(notice)
	}

	return ev, nil
}
