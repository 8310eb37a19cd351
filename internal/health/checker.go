package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Model statuses reported by the checker.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(success bool)

// ModelChecker periodically probes a remote model server's status endpoint.
// The model is reported degraded after FailThreshold consecutive failures
// and healthy again on the first success.
type ModelChecker struct {
	statusURL  string
	httpClient *http.Client
	cfg        Config

	mu        sync.Mutex
	failCount int
	status    string
	lastSeen  time.Time

	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// New creates a ModelChecker for statusURL.
func New(statusURL string, cfg Config, logger *zap.Logger) *ModelChecker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	return &ModelChecker{
		statusURL:  statusURL,
		httpClient: &http.Client{Timeout: cfg.ProbeTimeout},
		cfg:        cfg,
		status:     StatusHealthy,
		logger:     logger,
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (h *ModelChecker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Start runs the probe loop until ctx is cancelled.
func (h *ModelChecker) Start(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	h.Check(ctx)
	for {
		select {
		case <-ticker.C:
			h.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Check probes the model server once and updates the status.
func (h *ModelChecker) Check(ctx context.Context) bool {
	success := h.probe(ctx)
	if h.onMetrics != nil {
		h.onMetrics(success)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if success {
		if h.status == StatusDegraded {
			h.logger.Info("health: model server recovered", zap.String("url", h.statusURL))
		}
		h.failCount = 0
		h.status = StatusHealthy
		h.lastSeen = time.Now().UTC()
		return true
	}

	h.failCount++
	if h.failCount == h.cfg.FailThreshold {
		h.status = StatusDegraded
		h.logger.Warn("health: model server degraded",
			zap.String("url", h.statusURL),
			zap.Int("fail_count", h.failCount),
		)
	}
	return false
}

// Status returns the current status and the time of the last successful probe.
func (h *ModelChecker) Status() (string, time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, h.lastSeen
}

// probe issues a GET and returns true on any 2xx response.
func (h *ModelChecker) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.statusURL, nil)
	if err != nil {
		return false
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
