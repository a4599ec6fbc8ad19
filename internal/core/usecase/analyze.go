package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/file-insights/internal/core/domain"
	"github.com/kirillkom/file-insights/internal/core/ports"
)

const inferenceOperation = "inference"

// AnalyzeOptions carries the optional collaborators of AnalyzeBatchUseCase. Nil fields are skipped.
type AnalyzeOptions struct {
	Retrier  ports.Retrier
	Recorder ports.RunRecorder
	Observer ports.PipelineObserver
	Logger   *slog.Logger
}

// AnalyzeBatchUseCase runs Extract, Build, Infer and Parse for every file of a batch, one at a time.
type AnalyzeBatchUseCase struct {
	extractor ports.FileExtractor
	builder   ports.PromptBuilder
	client    ports.InferenceClient
	parser    ports.ResponseParser
	retrier   ports.Retrier
	recorder  ports.RunRecorder
	observer  ports.PipelineObserver
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

func NewAnalyzeBatchUseCase(
	extractor ports.FileExtractor,
	builder ports.PromptBuilder,
	client ports.InferenceClient,
	parser ports.ResponseParser,
	opts AnalyzeOptions,
) *AnalyzeBatchUseCase {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeBatchUseCase{
		extractor: extractor,
		builder:   builder,
		client:    client,
		parser:    parser,
		retrier:   opts.Retrier,
		recorder:  opts.Recorder,
		observer:  opts.Observer,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (uc *AnalyzeBatchUseCase) Analyze(
	ctx context.Context,
	files []domain.UploadedFile,
	task domain.TaskDescriptor,
	credential string,
) (domain.BatchReport, error) {
	if err := task.Validate(); err != nil {
		return domain.BatchReport{}, err
	}
	if strings.TrimSpace(credential) == "" {
		return domain.BatchReport{}, domain.WrapError(domain.ErrInvalidInput, "analyze batch", errors.New("credential is required"))
	}
	if len(files) == 0 {
		return domain.BatchReport{}, domain.WrapError(domain.ErrInvalidInput, "analyze batch", errors.New("no files"))
	}

	report := domain.BatchReport{
		BatchID:  uc.newID(),
		Task:     task.Name,
		TaskKind: task.Kind,
		Outcomes: make([]domain.FileOutcome, 0, len(files)),
		Started:  uc.now(),
	}
	logger := uc.logger.With("batch_id", report.BatchID, "task", task.Name)

	// fatal is set once a failure makes further calls pointless for the rest of the batch.
	var fatal *domain.FileError
	for i, file := range files {
		if fatal == nil && ctx.Err() != nil {
			fatal = &domain.FileError{Kind: domain.KindTimeout, Message: ctx.Err().Error()}
		}

		var (
			outcome domain.FileOutcome
			record  domain.RunRecord
		)
		if fatal != nil {
			outcome, record = uc.skip(i, file, task, *fatal)
		} else {
			outcome, record = uc.process(ctx, logger, i, file, task, credential)
			if outcome.Error != nil && outcome.Error.Kind == domain.KindAuthError {
				fatal = &domain.FileError{Kind: domain.KindAuthError, Message: outcome.Error.Message}
			}
		}
		record.BatchID = report.BatchID

		report.Outcomes = append(report.Outcomes, outcome)
		report.Stats = addStats(report.Stats, record)
		uc.publish(ctx, logger, record)
	}

	report.Duration = uc.now().Sub(report.Started)
	logger.Info("analysis.batch.done",
		"files", report.Stats.Files,
		"succeeded", report.Stats.Succeeded,
		"failed", report.Stats.Failed,
		"skipped", report.Stats.Skipped,
		"total_tokens", report.Stats.Tokens.Total,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

func (uc *AnalyzeBatchUseCase) process(
	ctx context.Context,
	logger *slog.Logger,
	index int,
	file domain.UploadedFile,
	task domain.TaskDescriptor,
	credential string,
) (domain.FileOutcome, domain.RunRecord) {
	started := uc.now()
	logger.Debug("analysis.file.start", "index", index, "filename", file.Filename, "size_bytes", len(file.Data))

	record := domain.RunRecord{
		ID:       uc.newID(),
		Filename: file.Filename,
		Task:     task.Name,
		TaskKind: task.Kind,
		Model:    task.Model,
	}
	result, err := uc.runPipeline(ctx, file, task, credential, &record)
	record.Duration = uc.now().Sub(started)
	record.RecordedAt = uc.now()

	outcome := domain.FileOutcome{Index: index, Filename: file.Filename}
	if err != nil {
		fileErr := toFileError(file.Filename, err)
		outcome.Error = &fileErr
		record.Status = domain.RunFailed
		record.ErrorKind = fileErr.Kind
		logger.Warn("analysis.file.done",
			"index", index,
			"filename", file.Filename,
			"file_kind", record.FileKind,
			"status", record.Status,
			"error_kind", fileErr.Kind,
			"error", fileErr.Message,
			"total_tokens", record.Usage.Total,
			"duration_ms", record.Duration.Milliseconds(),
		)
		return outcome, record
	}

	outcome.Result = &result
	record.Status = domain.RunSucceeded
	record.Model = result.Model
	logger.Info("analysis.file.done",
		"index", index,
		"filename", file.Filename,
		"file_kind", record.FileKind,
		"status", record.Status,
		"total_tokens", record.Usage.Total,
		"duration_ms", record.Duration.Milliseconds(),
	)
	return outcome, record
}

func (uc *AnalyzeBatchUseCase) runPipeline(
	ctx context.Context,
	file domain.UploadedFile,
	task domain.TaskDescriptor,
	credential string,
	record *domain.RunRecord,
) (domain.AnalysisResult, error) {
	doc, err := uc.extractor.Extract(ctx, file)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	record.FileKind = doc.Kind

	payload, err := uc.builder.Build(doc, task)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("build prompt: %w", err)
	}

	inference, err := uc.infer(ctx, file.Filename, payload, credential)
	record.Usage = inference.Usage
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	result, err := uc.parser.Parse(inference, task, doc)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	return result, nil
}

// infer returns the last InferenceResult observed. A failed result is also reported as an error
// carrying its kind so the retrier can classify it.
func (uc *AnalyzeBatchUseCase) infer(
	ctx context.Context,
	filename string,
	payload domain.PromptPayload,
	credential string,
) (domain.InferenceResult, error) {
	var result domain.InferenceResult
	call := func(ctx context.Context) error {
		result = uc.client.Infer(ctx, payload, credential)
		if result.Success {
			return nil
		}
		kind := result.ErrorKind
		if kind == "" {
			kind = domain.KindUnknownError
		}
		message := result.ErrorMessage
		if message == "" {
			message = "inference failed"
		}
		return domain.NewPipelineError(kind, filename, errors.New(message))
	}

	var err error
	if uc.retrier != nil {
		err = uc.retrier.Do(ctx, inferenceOperation, call)
	} else {
		err = call(ctx)
	}
	return result, err
}

func (uc *AnalyzeBatchUseCase) skip(index int, file domain.UploadedFile, task domain.TaskDescriptor, cause domain.FileError) (domain.FileOutcome, domain.RunRecord) {
	fileErr := domain.FileError{
		Filename: file.Filename,
		Kind:     cause.Kind,
		Message:  domain.SkippedPrefix + cause.Message,
	}
	record := domain.RunRecord{
		ID:         uc.newID(),
		Filename:   file.Filename,
		Task:       task.Name,
		TaskKind:   task.Kind,
		Model:      task.Model,
		Status:     domain.RunSkipped,
		ErrorKind:  cause.Kind,
		RecordedAt: uc.now(),
	}
	return domain.FileOutcome{Index: index, Filename: file.Filename, Error: &fileErr}, record
}

// publish hands the record to the observer and recorder. Recorder failures are logged only.
func (uc *AnalyzeBatchUseCase) publish(ctx context.Context, logger *slog.Logger, record domain.RunRecord) {
	if uc.observer != nil {
		uc.observer.ObserveFile(record)
	}
	if uc.recorder == nil {
		return
	}
	if err := uc.recorder.Record(context.WithoutCancel(ctx), record); err != nil {
		logger.Warn("analysis.record.failed", "filename", record.Filename, "error", err)
	}
}

func toFileError(filename string, err error) domain.FileError {
	message := err.Error()
	var pipelineErr *domain.PipelineError
	if errors.As(err, &pipelineErr) && pipelineErr.Err != nil {
		message = pipelineErr.Err.Error()
	}
	return domain.FileError{
		Filename: filename,
		Kind:     domain.ErrorKindOf(err),
		Message:  message,
	}
}

func addStats(stats domain.BatchStats, record domain.RunRecord) domain.BatchStats {
	stats.Files++
	switch record.Status {
	case domain.RunSucceeded:
		stats.Succeeded++
	case domain.RunSkipped:
		stats.Skipped++
	default:
		stats.Failed++
	}
	stats.Tokens = stats.Tokens.Add(record.Usage)
	return stats
}
