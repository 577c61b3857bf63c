package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/policy-advisor/internal/bootstrap"
	"github.com/kirillkom/policy-advisor/internal/config"
	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/observability/logging"
	"github.com/kirillkom/policy-advisor/internal/observability/metrics"
)

const serviceName = "policy-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stdout, serviceName, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewAdvisorMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, workerMetrics)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux(workerMetrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if cfg.WorkerSeedOnStart {
		seedPolicies(ctx, app)
	}

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentUploaded(ctx, func(handlerCtx context.Context, documentID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		workerMetrics.StartDocument()
		started := time.Now()
		err := app.Process.ProcessByID(processCtx, documentID)
		workerMetrics.FinishDocument(time.Since(started), err)
		if err != nil {
			return err
		}
		slog.Info("document_processed", "document_id", documentID, "duration_ms", time.Since(started).Milliseconds())
		return nil
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

// seedPolicies ingests the bundled policy PDFs once per start. Files that
// are already indexed are skipped.
func seedPolicies(ctx context.Context, app *bootstrap.App) {
	report, err := app.Ingest.IngestDirectory(ctx, app.Config.PoliciesDir)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			slog.Warn("seed_skipped", "dir", app.Config.PoliciesDir, "error", err)
			return
		}
		slog.Error("seed_failed", "dir", app.Config.PoliciesDir, "error", err)
		return
	}
	slog.Info("seed_completed",
		"embedded", report.Embedded,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
}

func metricsMux(m *metrics.AdvisorMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
