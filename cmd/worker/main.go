package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/file-insights/internal/bootstrap"
	"github.com/kirillkom/file-insights/internal/config"
	"github.com/kirillkom/file-insights/internal/core/domain"
	"github.com/kirillkom/file-insights/internal/observability/logging"
	"github.com/kirillkom/file-insights/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup completes before exit.
func run() int {
	cfg := config.Load()
	logger := logging.New(logging.Options{Service: serviceName, Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := bootstrap.NewLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap.failed", "error", err)
		return 1
	}
	defer ledger.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker.metrics.listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker.metrics.failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker.subscribed", "subject", cfg.NATSSubject)
	err = ledger.Queue.SubscribeRunRecords(ctx, func(handlerCtx context.Context, record domain.RunRecord) error {
		workerMetrics.ObserveQueueLag(time.Since(record.RecordedAt))

		writeCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()

		start := time.Now()
		workerMetrics.StartWrite()
		err := ledger.Repo.Record(writeCtx, record)
		workerMetrics.FinishWrite(time.Since(start), err)
		if err == nil {
			logger.Debug("ledger.record.stored", "run_id", record.ID, "batch_id", record.BatchID, "status", record.Status)
		}
		return err
	})
	if err != nil {
		logger.Error("worker.subscribe.failed", "error", err)
		return 1
	}
	return 0
}
