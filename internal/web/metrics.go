package web

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/TrafficSentry/internal/inference"
	"github.com/jmerrifield20/TrafficSentry/internal/notify"
	"github.com/jmerrifield20/TrafficSentry/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sentryRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentry_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	sentryRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentry_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	sentryVerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentry_verdicts_total",
		Help: "Total verdicts by label.",
	}, []string{"label"})

	sentryVerdictScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentry_verdict_score",
		Help:    "Distribution of model scores.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	sentryInferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentry_inference_duration_seconds",
		Help:    "Model forward-pass duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	sentryInferenceErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentry_inference_errors_total",
		Help: "Total failed predictions.",
	})

	sentryNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentry_notifications_total",
		Help: "Total notification attempts by outcome level.",
	}, []string{"level"})

	sentrySnapshotWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentry_snapshot_writes_total",
		Help: "Total snapshot writes by result.",
	}, []string{"result"})

	sentryModelProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentry_model_probes_total",
		Help: "Total model server probes by result.",
	}, []string{"result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		sentryRequestsTotal.WithLabelValues(method, path, status).Inc()
		sentryRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// PipelineObserver returns callbacks that feed pipeline outcomes into the
// Prometheus collectors.
func PipelineObserver() pipeline.Observer {
	return pipeline.Observer{
		Inference: func(d time.Duration, err error) {
			sentryInferenceDuration.Observe(d.Seconds())
			if err != nil {
				sentryInferenceErrorsTotal.Inc()
			}
		},
		Verdict: func(v *inference.Verdict) {
			sentryVerdictsTotal.WithLabelValues(v.Label).Inc()
			sentryVerdictScore.Observe(v.Score)
		},
		Notification: func(n notify.Notice) {
			sentryNotificationsTotal.WithLabelValues(n.Level).Inc()
		},
		Snapshot: func(err error) {
			sentrySnapshotWritesTotal.WithLabelValues(resultLabel(err == nil)).Inc()
		},
	}
}

// RecordModelProbe records a model server probe result.
func RecordModelProbe(success bool) {
	sentryModelProbesTotal.WithLabelValues(resultLabel(success)).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
