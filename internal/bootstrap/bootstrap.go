package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/file-insights/internal/config"
	"github.com/kirillkom/file-insights/internal/core/domain"
	"github.com/kirillkom/file-insights/internal/core/parsing"
	"github.com/kirillkom/file-insights/internal/core/ports"
	"github.com/kirillkom/file-insights/internal/core/prompting"
	"github.com/kirillkom/file-insights/internal/core/usecase"
	"github.com/kirillkom/file-insights/internal/infrastructure/extractor"
	"github.com/kirillkom/file-insights/internal/infrastructure/llm/openai"
	"github.com/kirillkom/file-insights/internal/infrastructure/queue/nats"
	"github.com/kirillkom/file-insights/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/file-insights/internal/infrastructure/resilience"
	"github.com/kirillkom/file-insights/internal/infrastructure/taskcatalog"
	"github.com/kirillkom/file-insights/internal/observability/metrics"
)

// Options are process-specific collaborators. All fields are optional.
type Options struct {
	Service string
	Logger  *slog.Logger
	// HTTPMetrics, when set, also receives the per-file pipeline metrics.
	HTTPMetrics *metrics.HTTPServerMetrics
	// Observer is notified after every file, e.g. to drive a progress bar.
	Observer ports.PipelineObserver
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Catalog  *taskcatalog.Catalog
	Analyzer *usecase.AnalyzeBatchUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	catalog, err := loadCatalog(cfg.TasksFile)
	if err != nil {
		return nil, fmt.Errorf("load task catalog: %w", err)
	}

	builder, err := prompting.New(prompting.Config{MaxContentChars: cfg.PromptMaxChars})
	if err != nil {
		return nil, fmt.Errorf("init prompt builder: %w", err)
	}
	parser, err := parsing.New()
	if err != nil {
		return nil, fmt.Errorf("init response parser: %w", err)
	}
	client, err := openai.New(openai.Config{
		BaseURL:           cfg.OpenAIBaseURL,
		Timeout:           cfg.InferenceTimeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init inference client: %w", err)
	}
	fileExtractor := extractor.New(extractor.Config{
		MaxPages:      cfg.MaxPages,
		MaxParagraphs: cfg.MaxParagraphs,
		PreviewRows:   cfg.PreviewRows,
		MaxJSONChars:  cfg.MaxJSONChars,
		MaxFileBytes:  cfg.MaxFileBytes,
		Logger:        logger,
	})

	retrier := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: cfg.RetryInitialBackoff,
		RetryMaxBackoff:     cfg.RetryMaxBackoff,
		BreakerEnabled:      cfg.BreakerEnabled,
	}, logger)

	var observers observerSet
	if opts.HTTPMetrics != nil {
		observers = append(observers, metrics.NewPipelineMetrics(opts.Service, opts.HTTPMetrics.Registerer()))
	}
	if opts.Observer != nil {
		observers = append(observers, opts.Observer)
	}
	analyzeOpts := usecase.AnalyzeOptions{Retrier: retrier, Logger: logger}
	if len(observers) > 0 {
		analyzeOpts.Observer = observers
	}

	closeFn := func() {}
	if cfg.LedgerEnabled {
		queue, err := newQueue(cfg, logger)
		if err != nil {
			return nil, err
		}
		analyzeOpts.Recorder = queue
		closeFn = queue.Close
		logger.Info("ledger.publisher.enabled", "subject", cfg.NATSSubject)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Catalog:  catalog,
		Analyzer: usecase.NewAnalyzeBatchUseCase(fileExtractor, builder, client, parser, analyzeOpts),
		closeFn:  closeFn,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// Ledger is the worker side of the usage ledger: it consumes run records and stores them.
type Ledger struct {
	Queue *nats.Queue
	Repo  *postgres.RunRepository

	closeFn func()
}

var _ ports.RunLedger = (*postgres.RunRepository)(nil)

func NewLedger(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewRunRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := newQueue(cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Ledger{
		Queue: queue,
		Repo:  repo,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (l *Ledger) Close() {
	if l.closeFn != nil {
		l.closeFn()
	}
}

func newQueue(cfg config.Config, logger *slog.Logger) (*nats.Queue, error) {
	publishExecutor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Second,
	}, logger)
	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: publishExecutor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	return queue, nil
}

type observerSet []ports.PipelineObserver

func (s observerSet) ObserveFile(record domain.RunRecord) {
	for _, o := range s {
		o.ObserveFile(record)
	}
}

func loadCatalog(path string) (*taskcatalog.Catalog, error) {
	if path == "" {
		return taskcatalog.Default()
	}
	return taskcatalog.Load(path)
}
