package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mcpadapter "github.com/kirillkom/file-insights/internal/adapters/mcp"
	"github.com/kirillkom/file-insights/internal/bootstrap"
	"github.com/kirillkom/file-insights/internal/config"
	"github.com/kirillkom/file-insights/internal/observability/logging"
)

const serviceName = "mcp"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	// stdout carries the MCP protocol, so logs go to stderr.
	logger := logging.New(logging.Options{
		Service: serviceName,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: serviceName, Logger: logger})
	if err != nil {
		logger.Error("bootstrap.failed", "error", err)
		return 1
	}
	defer app.Close()

	srv := mcpadapter.NewServer(app.Analyzer, app.Catalog, mcpadapter.Config{
		Credential:   credentialFromEnv(),
		MaxFileBytes: cfg.MaxFileBytes,
		Logger:       logger,
	})
	logger.Info("mcp.serving", "transport", "stdio")
	if err := srv.ServeStdio(); err != nil {
		logger.Error("mcp.serve.failed", "error", err)
		return 1
	}
	return 0
}

func credentialFromEnv() string {
	for _, key := range []string{"INSIGHTS_API_KEY", "OPENAI_API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}
