package domain

import (
	"strings"
	"time"
)

const (
	// UnclassifiedLabel is reported when the model names none of the declared categories.
	UnclassifiedLabel = "Unclassified"
	// DefaultConfidence is used when the model response carries no usable confidence number.
	DefaultConfidence = 0.5
	// NotEvaluated is the assessment of a declared criterion the model did not score.
	NotEvaluated = "not evaluated"
)

type CategoryResult struct {
	Label               string  `json:"label"`
	Confidence          float64 `json:"confidence"`
	ConfidenceDefaulted bool    `json:"confidence_defaulted,omitempty"`
	Matched             bool    `json:"matched"`
	Preview             string  `json:"content_preview"`
}

type CriterionScore struct {
	Label      string   `json:"criterion"`
	Score      *float64 `json:"score"`
	Assessment string   `json:"assessment"`
	Issues     []string `json:"issues"`
}

type QualityResult struct {
	OverallScore *float64         `json:"overall_score"`
	Criteria     []CriterionScore `json:"criteria"`
	Repaired     bool             `json:"repaired,omitempty"`
}

type InsightsResult struct {
	Text string `json:"text"`
}

// AnalysisResult is the typed output for one file. Exactly one of Category, Quality, Insights is set,
// according to TaskKind.
type AnalysisResult struct {
	Filename string          `json:"filename"`
	FileKind FileKind        `json:"file_kind"`
	TaskKind TaskKind        `json:"task_kind"`
	Model    string          `json:"model"`
	Category *CategoryResult `json:"category,omitempty"`
	Quality  *QualityResult  `json:"quality,omitempty"`
	Insights *InsightsResult `json:"insights,omitempty"`
	Usage    TokenUsage      `json:"usage"`
}

// SkippedPrefix starts the message of files that were never attempted.
const SkippedPrefix = "skipped: "

// FileError is the per-file diagnostic row; it never carries a stack trace.
type FileError struct {
	Filename string    `json:"filename"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
}

func (e FileError) Skipped() bool {
	return strings.HasPrefix(e.Message, SkippedPrefix)
}

// FileOutcome is one row of a batch report. Exactly one of Result and Error is non-nil.
type FileOutcome struct {
	Index    int             `json:"index"`
	Filename string          `json:"filename"`
	Result   *AnalysisResult `json:"result,omitempty"`
	Error    *FileError      `json:"error,omitempty"`
}

func (o FileOutcome) Succeeded() bool {
	return o.Result != nil && o.Error == nil
}

func (o FileOutcome) Usage() TokenUsage {
	if o.Result == nil {
		return TokenUsage{}
	}
	return o.Result.Usage
}

type BatchStats struct {
	Files     int        `json:"files"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Skipped   int        `json:"skipped"`
	Tokens    TokenUsage `json:"tokens"`
}

// BatchReport holds the outcomes of a batch in input order.
type BatchReport struct {
	BatchID  string        `json:"batch_id"`
	Task     string        `json:"task"`
	TaskKind TaskKind      `json:"task_kind"`
	Outcomes []FileOutcome `json:"outcomes"`
	Stats    BatchStats    `json:"stats"`
	Started  time.Time     `json:"started_at"`
	Duration time.Duration `json:"duration_ns"`
}

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunSkipped   RunStatus = "skipped"
)

// RunRecord is the usage-ledger view of one processed file. It holds metadata only, never content.
type RunRecord struct {
	ID         string        `json:"id"`
	BatchID    string        `json:"batch_id"`
	Filename   string        `json:"filename"`
	FileKind   FileKind      `json:"file_kind,omitempty"`
	Task       string        `json:"task"`
	TaskKind   TaskKind      `json:"task_kind"`
	Model      string        `json:"model"`
	Status     RunStatus     `json:"status"`
	ErrorKind  ErrorKind     `json:"error_kind,omitempty"`
	Usage      TokenUsage    `json:"usage"`
	Duration   time.Duration `json:"duration_ns"`
	RecordedAt time.Time     `json:"recorded_at"`
}
