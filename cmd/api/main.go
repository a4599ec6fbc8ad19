package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/file-insights/internal/adapters/http"
	"github.com/kirillkom/file-insights/internal/bootstrap"
	"github.com/kirillkom/file-insights/internal/config"
	"github.com/kirillkom/file-insights/internal/observability/logging"
	"github.com/kirillkom/file-insights/internal/observability/metrics"
)

const serviceName = "api"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	logger := logging.New(logging.Options{Service: serviceName, Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:     serviceName,
		Logger:      logger,
		HTTPMetrics: httpMetrics,
	})
	if err != nil {
		logger.Error("bootstrap.failed", "error", err)
		return 1
	}
	defer app.Close()

	router, err := httpadapter.NewRouter(cfg, app.Analyzer, app.Catalog, httpMetrics, logger)
	if err != nil {
		logger.Error("router.init.failed", "error", err)
		return 1
	}

	// Inference calls run inside the request, so the write timeout covers a whole batch.
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      30 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api.listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("api.server.failed", "error", err)
			return 1
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api.shutdown.failed", "error", err)
		return 1
	}
	return 0
}
