package ports

import (
	"context"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

// BatchAnalyzer is the inbound contract for running the pipeline over a batch of files.
type BatchAnalyzer interface {
	Analyze(ctx context.Context, files []domain.UploadedFile, task domain.TaskDescriptor, credential string) (domain.BatchReport, error)
}

// TaskCatalog resolves named task presets into descriptors.
type TaskCatalog interface {
	Resolve(name string, overrides TaskOverrides) (domain.TaskDescriptor, error)
	List() []domain.TaskDescriptor
}

// TaskOverrides are caller-supplied adjustments applied on top of a preset. Empty fields keep the preset value.
type TaskOverrides struct {
	Model        string
	Categories   []string
	Criteria     []string
	Instructions string
	MaxTokens    int
}
