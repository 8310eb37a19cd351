package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/TrafficSentry/internal/collector"
	"github.com/jmerrifield20/TrafficSentry/internal/features"
	"github.com/jmerrifield20/TrafficSentry/internal/inference"
	"github.com/jmerrifield20/TrafficSentry/internal/notify"
	"github.com/jmerrifield20/TrafficSentry/internal/pipeline"
	"github.com/jmerrifield20/TrafficSentry/internal/snapshot"
	"github.com/jmerrifield20/TrafficSentry/internal/web"
	"go.uber.org/zap"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubPredictor struct {
	score float64
	err   error
}

func (s stubPredictor) Predict(context.Context, inference.Tensor) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float64{s.score}, nil
}

type recordingSender struct{ sent int }

func (r *recordingSender) Send(context.Context, string, string, string) error {
	r.sent++
	return nil
}

type testEnv struct {
	router *gin.Engine
	sender *recordingSender
}

func setupRouter(t *testing.T, p inference.Predictor, rps int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sender := &recordingSender{}
	sink := snapshot.NewCSVSink(filepath.Join(t.TempDir(), "normalized_data.csv"))
	pl, err := pipeline.New(pipeline.Config{
		Bounds:    features.DefaultBounds(),
		Adapter:   inference.NewAdapter(p),
		Snapshot:  sink,
		Notifier:  notify.New(sender, zap.NewNop()),
		Recipient: "ops@example.com",
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	pl.SetObserver(web.PipelineObserver())

	h := web.NewHandler(pl, collector.New(), zap.NewNop())
	h.SetSnapshotReader(sink)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	router := web.NewRouter(ctx, h, web.RouterConfig{
		CORSOrigins:  []string{"http://localhost:3000"},
		RateLimitRPS: rps,
	}, zap.NewNop())
	return &testEnv{router: router, sender: sender}
}

func do(router *gin.Engine, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr
	req.Host = "sentry.local"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestLanding_200_normal(t *testing.T) {
	env := setupRouter(t, stubPredictor{score: 0.2}, 0)

	w := do(env.router, "/", "127.0.0.1:5000")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{"127.0.0.1", "5000", "sentry.local", ">Normal<", notify.MsgSent} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if env.sender.sent != 1 {
		t.Errorf("expected one email, got %d", env.sender.sent)
	}
}

func TestLanding_502_predictionError(t *testing.T) {
	env := setupRouter(t, stubPredictor{err: errors.New("model unavailable")}, 0)

	w := do(env.router, "/", "127.0.0.1:5000")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Error during prediction") {
		t.Errorf("expected prediction error message, got %s", w.Body.String())
	}
	if env.sender.sent != 0 {
		t.Error("no email expected when prediction fails")
	}
}

func TestLanding_400_badRemoteAddr(t *testing.T) {
	env := setupRouter(t, stubPredictor{score: 0.2}, 0)

	w := do(env.router, "/", "not-an-address")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestEvaluate_200_loopbackScenario(t *testing.T) {
	env := setupRouter(t, stubPredictor{score: 0.5}, 0)

	w := do(env.router, "/api/v1/evaluate", "127.0.0.1:5000")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Normalized map[string]float64 `json:"normalized"`
		Verdict    struct {
			Label   string  `json:"label"`
			Anomaly bool    `json:"anomaly"`
			Score   float64 `json:"score"`
		} `json:"verdict"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got := resp.Normalized[features.DestinationPort]; math.Abs(got-0.00122) > 1e-5 {
		t.Errorf("DestinationPort = %v, want ~0.00122", got)
	}
	if got := resp.Normalized[features.Protocol]; math.Abs(got-0.6) > 1e-12 {
		t.Errorf("Protocol = %v, want 0.6", got)
	}
	if got := resp.Normalized[features.SourcePort]; math.Abs(got-5000.0/65535.0) > 1e-12 {
		t.Errorf("SourcePort = %v, want %v", got, 5000.0/65535.0)
	}
	if resp.Verdict.Label != "Normal" || resp.Verdict.Anomaly {
		t.Errorf("expected Normal for score 0.5, got %+v", resp.Verdict)
	}
}

func TestSnapshot_404_thenLatest(t *testing.T) {
	env := setupRouter(t, stubPredictor{score: 0.2}, 0)

	if w := do(env.router, "/api/v1/snapshot", "127.0.0.1:5000"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any evaluation, got %d", w.Code)
	}

	do(env.router, "/", "127.0.0.1:5000")
	do(env.router, "/", "127.0.0.1:6000")

	w := do(env.router, "/api/v1/snapshot", "127.0.0.1:5000")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Record map[string]float64 `json:"record"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if got := resp.Record[features.SourcePort]; math.Abs(got-6000.0/65535.0) > 1e-12 {
		t.Errorf("expected snapshot from the second request, SourcePort=%v", got)
	}
}

func TestBounds_200(t *testing.T) {
	env := setupRouter(t, stubPredictor{score: 0.2}, 0)

	w := do(env.router, "/api/v1/bounds", "127.0.0.1:5000")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Bounds []features.NamedBound `json:"bounds"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Bounds) != len(features.Order) || resp.Bounds[0].Name != features.SourceIP {
		t.Errorf("unexpected bounds %+v", resp.Bounds)
	}
}

func TestHealthz_200(t *testing.T) {
	env := setupRouter(t, stubPredictor{score: 0.2}, 0)

	w := do(env.router, "/healthz", "127.0.0.1:5000")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["model"] != "loaded" {
		t.Errorf("expected model loaded, got %v", resp["model"])
	}
}

func TestRateLimit_429(t *testing.T) {
	env := setupRouter(t, stubPredictor{score: 0.2}, 1)

	var last int
	for i := 0; i < 3; i++ {
		last = do(env.router, "/healthz", "127.0.0.1:5000").Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", last)
	}
}

func TestMetrics_200(t *testing.T) {
	env := setupRouter(t, stubPredictor{score: 0.9}, 0)
	do(env.router, "/", "127.0.0.1:5000")

	w := do(env.router, "/metrics", "127.0.0.1:5000")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `sentry_verdicts_total{label="Anomaly"}`) {
		t.Error("expected anomaly verdict counter in metrics output")
	}
}

func TestRequestStart_durationIsMeasured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(web.RequestStart())
	r.GET("/", func(c *gin.Context) {
		time.Sleep(5 * time.Millisecond)
		obs, err := collector.New().Collect(c.Request, c.GetTime("request_start"))
		if err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.JSON(http.StatusOK, gin.H{"duration": obs.Duration.Seconds()})
	})

	w := do(r, "/", "127.0.0.1:5000")
	var resp map[string]float64
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["duration"] < 0.005 {
		t.Errorf("expected duration >= 5ms, got %v", resp["duration"])
	}
}
