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

	"github.com/kirillkom/document-intelligence/internal/bootstrap"
	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-intelligence/internal/observability/logging"
	"github.com/kirillkom/document-intelligence/internal/observability/metrics"
	"github.com/kirillkom/document-intelligence/internal/observability/tracing"
)

const serviceName = "docintel-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, serviceName, cfg.OTELExporterEndpoint, cfg.OTELSampleRatio)
	if err != nil {
		slog.Error("tracing_init_failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Observer:             workerMetrics,
		OnBreakerStateChange: workerMetrics.ObserveBreakerState,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
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

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeReanalysisRequested(ctx, func(handlerCtx context.Context, documentID string) error {
		if requestedAt, ok := nats.RequestedAtFromContext(handlerCtx); ok {
			workerMetrics.ObserveQueueLag(time.Since(requestedAt))
		}

		started := time.Now()
		workerMetrics.StartReanalysis()
		result, err := app.ReanalyzeUC.ReanalyzeByID(handlerCtx, documentID, reanalysisOptions(cfg))
		workerMetrics.FinishReanalysis(time.Since(started), err)
		if err != nil {
			return err
		}
		slog.Info("reanalysis_completed",
			"document_id", documentID,
			"recommended_action", result.RecommendedAction,
			"overall_score", result.OverallScore,
			"processing_time_ms", result.ProcessingTimeMs,
		)
		return nil
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

func reanalysisOptions(cfg config.Config) domain.AnalysisOptions {
	opts := domain.DefaultAnalysisOptions()
	if cfg.DefaultToleranceDay > 0 {
		opts.TemporalToleranceDays = cfg.DefaultToleranceDay
	}
	if scope := domain.DuplicateScope(cfg.DefaultScope); scope.Valid() {
		opts.DuplicateScope = scope
	}
	return opts
}
