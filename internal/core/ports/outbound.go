package ports

import (
	"context"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

// FileExtractor converts an uploaded file into model-ready text.
type FileExtractor interface {
	Extract(ctx context.Context, file domain.UploadedFile) (domain.ExtractedDocument, error)
}

// PromptBuilder produces a bounded, deterministic prompt for a document and task.
type PromptBuilder interface {
	Build(doc domain.ExtractedDocument, task domain.TaskDescriptor) (domain.PromptPayload, error)
}

// InferenceClient performs one completion round trip. Failures are reported inside the result.
type InferenceClient interface {
	Infer(ctx context.Context, payload domain.PromptPayload, credential string) domain.InferenceResult
}

// ResponseParser decodes raw model output into a typed result.
type ResponseParser interface {
	Parse(result domain.InferenceResult, task domain.TaskDescriptor, doc domain.ExtractedDocument) (domain.AnalysisResult, error)
}

// RunRecorder receives usage-ledger records. Implementations must not block the pipeline for long.
type RunRecorder interface {
	Record(ctx context.Context, record domain.RunRecord) error
}

// RunLedger persists run records.
type RunLedger interface {
	RunRecorder
	ListByBatch(ctx context.Context, batchID string) ([]domain.RunRecord, error)
}

// PipelineObserver receives per-file timing and outcome observations.
type PipelineObserver interface {
	ObserveFile(record domain.RunRecord)
}

// Retrier runs a call under a retry and breaker policy.
type Retrier interface {
	Do(ctx context.Context, operation string, fn func(context.Context) error) error
}
