package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/TrafficSentry/internal/collector"
	"github.com/jmerrifield20/TrafficSentry/internal/config"
	"github.com/jmerrifield20/TrafficSentry/internal/email"
	"github.com/jmerrifield20/TrafficSentry/internal/events"
	"github.com/jmerrifield20/TrafficSentry/internal/health"
	"github.com/jmerrifield20/TrafficSentry/internal/inference"
	"github.com/jmerrifield20/TrafficSentry/internal/logging"
	"github.com/jmerrifield20/TrafficSentry/internal/notify"
	"github.com/jmerrifield20/TrafficSentry/internal/pipeline"
	"github.com/jmerrifield20/TrafficSentry/internal/snapshot"
	"github.com/jmerrifield20/TrafficSentry/internal/web"
	"go.uber.org/zap"
)

func main() {
	cfg, fileFound, err := config.Load(config.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentry: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentry: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if !fileFound {
		logger.Warn("no config file found, using defaults and env vars")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("sentry exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Model ─────────────────────────────────────────────────────────────────
	predictor, err := inference.Load(cfg.Model)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	var checker *health.ModelChecker
	if sc, ok := predictor.(*inference.ServingClient); ok {
		checker = health.New(sc.StatusURL(), health.Config{CheckInterval: cfg.Probe}, logger)
		checker.SetMetricsRecord(web.RecordModelProbe)
		go checker.Start(ctx)
		logger.Info("model: remote serving endpoint", zap.String("url", sc.StatusURL()))
	} else {
		logger.Info("model: artifact loaded", zap.String("path", cfg.Model.Path))
	}

	// ── Mail ──────────────────────────────────────────────────────────────────
	var mailer email.Sender
	if cfg.Mail.SMTPHost != "" {
		mailer = email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
		logger.Info("SMTP email sender configured", zap.String("host", cfg.Mail.SMTPHost))
	} else {
		mailer = email.NewNoopSender(logger)
		logger.Info("email sender: noop (set mail.smtp_host to enable SMTP)")
	}
	if cfg.Mail.Recipient == "" {
		logger.Warn("mail.recipient is empty; verdict notifications will be skipped")
	}

	// ── Events ────────────────────────────────────────────────────────────────
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.NATSURL != "" {
		p, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject, logger)
		if err != nil {
			return fmt.Errorf("event publisher: %w", err)
		}
		publisher = p
	}
	defer publisher.Close()

	// ── Pipeline ──────────────────────────────────────────────────────────────
	sink := snapshot.NewCSVSink(cfg.Snapshot)
	pl, err := pipeline.New(pipeline.Config{
		Bounds:    cfg.Bounds,
		Adapter:   inference.NewAdapter(predictor),
		Snapshot:  sink,
		Notifier:  notify.New(mailer, logger),
		Publisher: publisher,
		Recipient: cfg.Mail.Recipient,
	}, logger)
	if err != nil {
		return err
	}
	pl.SetObserver(web.PipelineObserver())

	h := web.NewHandler(pl, collector.New(), logger)
	h.SetSnapshotReader(sink)
	if checker != nil {
		h.SetModelStatus(checker.Status)
	}

	// ── HTTP ──────────────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := web.NewRouter(ctx, h, web.RouterConfig{
		CORSOrigins:  cfg.Server.CORSOrigins,
		RateLimitRPS: cfg.Server.RateLimitRPS,
	}, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sentry HTTP listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http listen: %w", err)
	}
	logger.Info("shutting down sentry...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("sentry stopped")
	return nil
}
