// Package parsing decodes raw model output into typed analysis results. Degraded output is
// repaired where possible; only output with nothing to decompose is rejected.
package parsing

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

//go:embed quality_schema.json
var qualitySchemaJSON []byte

const qualitySchemaURL = "quality_schema.json"

// Parser implements ports.ResponseParser. It holds no per-call state.
type Parser struct {
	qualitySchema *jsonschema.Schema
}

func New() (*Parser, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(qualitySchemaURL, bytes.NewReader(qualitySchemaJSON)); err != nil {
		return nil, fmt.Errorf("add quality schema: %w", err)
	}
	schema, err := compiler.Compile(qualitySchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile quality schema: %w", err)
	}
	return &Parser{qualitySchema: schema}, nil
}

func (p *Parser) Parse(result domain.InferenceResult, task domain.TaskDescriptor, doc domain.ExtractedDocument) (domain.AnalysisResult, error) {
	if !result.Success {
		kind := result.ErrorKind
		if kind == "" {
			kind = domain.KindUnknownError
		}
		message := result.ErrorMessage
		if message == "" {
			message = "inference failed"
		}
		return domain.AnalysisResult{}, domain.NewPipelineError(kind, doc.Filename, errors.New(message))
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return domain.AnalysisResult{}, malformed(doc.Filename, errors.New("empty response"))
	}

	model := result.Model
	if model == "" {
		model = task.Model
	}
	out := domain.AnalysisResult{
		Filename: doc.Filename,
		FileKind: doc.Kind,
		TaskKind: task.Kind,
		Model:    model,
		Usage:    result.Usage,
	}

	switch task.Kind {
	case domain.TaskCategorize:
		category := parseCategory(text, task.CategoryLabels())
		category.Preview = doc.Preview()
		out.Category = &category
	case domain.TaskQuality:
		quality := p.parseQuality(text, task.CriterionLabels())
		out.Quality = &quality
	case domain.TaskInsights:
		insights := stripCodeFence(text)
		if insights == "" {
			return domain.AnalysisResult{}, malformed(doc.Filename, errors.New("empty response"))
		}
		out.Insights = &domain.InsightsResult{Text: insights}
	default:
		return domain.AnalysisResult{}, domain.WrapError(domain.ErrInvalidInput, "parse response", fmt.Errorf("unknown task kind %q", task.Kind))
	}
	return out, nil
}

func malformed(filename string, err error) error {
	return domain.NewPipelineError(domain.KindMalformedResponse, filename, domain.WrapError(domain.ErrMalformedResponse, "parse response", err))
}

// stripCodeFence removes a surrounding ``` or ```lang fence.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if newline := strings.IndexByte(text, '\n'); newline >= 0 {
		text = text[newline+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// extractJSONObject returns the outermost {...} span of raw, or "" when there is none.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return ""
}
