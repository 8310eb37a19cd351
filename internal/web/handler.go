// Package web exposes the evaluation pipeline over HTTP: an HTML landing
// page at the root and a small JSON API under /api/v1.
package web

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/TrafficSentry/internal/collector"
	"github.com/jmerrifield20/TrafficSentry/internal/features"
	"github.com/jmerrifield20/TrafficSentry/internal/inference"
	"github.com/jmerrifield20/TrafficSentry/internal/notify"
	"github.com/jmerrifield20/TrafficSentry/internal/pipeline"
	"github.com/jmerrifield20/TrafficSentry/internal/snapshot"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// startKey is the gin context key holding the request start time.
const startKey = "request_start"

// RequestStart records when the request entered the server. The collector
// derives the Duration feature from it.
func RequestStart() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(startKey, time.Now())
		c.Next()
	}
}

// Templates parses the embedded HTML templates.
func Templates() *template.Template {
	return template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
}

// SnapshotReader returns the most recent snapshot.
type SnapshotReader interface {
	Read() (features.Record, error)
}

// ModelStatusFunc reports model readiness.
type ModelStatusFunc func() (status string, lastSeen time.Time)

// Handler serves the landing page and the JSON API.
type Handler struct {
	pipeline    *pipeline.Pipeline
	collector   *collector.Collector
	snapshots   SnapshotReader
	modelStatus ModelStatusFunc
	logger      *zap.Logger
}

// NewHandler creates a new Handler.
func NewHandler(p *pipeline.Pipeline, c *collector.Collector, logger *zap.Logger) *Handler {
	return &Handler{pipeline: p, collector: c, logger: logger}
}

// SetSnapshotReader enables GET /api/v1/snapshot.
func (h *Handler) SetSnapshotReader(r SnapshotReader) {
	h.snapshots = r
}

// SetModelStatus configures the readiness source reported by /healthz.
func (h *Handler) SetModelStatus(fn ModelStatusFunc) {
	h.modelStatus = fn
}

// Register mounts the page and health routes on the engine.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.Landing)
	r.GET("/healthz", h.Healthz)
}

// RegisterAPI mounts the JSON routes on the given router group.
func (h *Handler) RegisterAPI(rg *gin.RouterGroup) {
	rg.GET("/evaluate", h.Evaluate)
	rg.GET("/snapshot", h.Snapshot)
	rg.GET("/bounds", h.Bounds)
}

// landingView is the template context for landing.html.
type landingView struct {
	ID              string
	HasObservation  bool
	SourceIP        string
	SourcePort      int
	DestinationHost string
	PacketsSent     int
	PacketsReceived int
	BytesSent       int
	Duration        float64
	Normalized      features.Record
	HasVerdict      bool
	Result          string
	Score           float64
	Error           string
	Notices         []notify.Notice
}

// run collects and evaluates the current request. status is the HTTP status
// the caller should respond with.
func (h *Handler) run(c *gin.Context) (ev *pipeline.Evaluation, status int, err error) {
	start := c.GetTime(startKey)
	obs, err := h.collector.Collect(c.Request, start)
	if err != nil {
		h.logger.Warn("collect request features", zap.Error(err))
		return nil, http.StatusBadRequest, err
	}

	ev, err = h.pipeline.Evaluate(c.Request.Context(), obs)
	if err != nil {
		var ie *inference.Error
		if errors.As(err, &ie) {
			return ev, http.StatusBadGateway, err
		}
		return ev, http.StatusInternalServerError, err
	}
	return ev, http.StatusOK, nil
}

// Landing handles GET /. It evaluates the caller's request and renders the result.
func (h *Handler) Landing(c *gin.Context) {
	ev, status, err := h.run(c)

	view := landingView{Notices: []notify.Notice{}}
	if ev != nil {
		view.ID = ev.ID.String()
		view.Normalized = ev.Normalized
		view.Notices = ev.Notices
		if obs := ev.Observation; obs != nil {
			view.HasObservation = true
			view.SourceIP = obs.SourceIP
			view.SourcePort = obs.SourcePort
			view.DestinationHost = obs.DestinationHost
			view.PacketsSent = obs.PacketsSent
			view.PacketsReceived = obs.PacketsReceived
			view.BytesSent = obs.BytesSent
			view.Duration = obs.Duration.Seconds()
		}
		if v := ev.Verdict; v != nil {
			view.HasVerdict = true
			view.Result = v.Label
			view.Score = v.Score
		}
	}
	if err != nil {
		view.Error = errorMessage(status, err)
	}

	c.HTML(status, "landing.html", view)
}

// Evaluate handles GET /api/v1/evaluate: the landing pipeline as JSON.
func (h *Handler) Evaluate(c *gin.Context) {
	ev, status, err := h.run(c)
	if err != nil {
		body := gin.H{"error": errorMessage(status, err)}
		if ev != nil {
			body["evaluation"] = ev
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// Snapshot handles GET /api/v1/snapshot: the record currently on disk.
func (h *Handler) Snapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshots are disabled"})
		return
	}
	rec, err := h.snapshots.Read()
	if errors.Is(err, snapshot.ErrEmpty) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot yet"})
		return
	}
	if err != nil {
		h.logger.Error("read snapshot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read snapshot"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec})
}

// Bounds handles GET /api/v1/bounds: the bounds table in tensor order.
func (h *Handler) Bounds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bounds": h.pipeline.Bounds().Entries()})
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(c *gin.Context) {
	if h.modelStatus == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "model": "loaded"})
		return
	}
	status, lastSeen := h.modelStatus()
	body := gin.H{"status": "ok", "model": status}
	if !lastSeen.IsZero() {
		body["model_last_seen"] = lastSeen
	}
	c.JSON(http.StatusOK, body)
}

func errorMessage(status int, err error) string {
	switch status {
	case http.StatusBadRequest:
		return "Could not read request metadata: " + err.Error()
	case http.StatusBadGateway:
		return "Error during prediction: " + err.Error()
	default:
		return "Configuration error: " + err.Error()
	}
}
