package plaintext

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

const DefaultMaxJSONChars = 2000

// JSONExtractor pretty-prints a JSON document and caps its size.
type JSONExtractor struct {
	maxChars int
}

func NewJSONExtractor(maxChars int) *JSONExtractor {
	if maxChars <= 0 {
		maxChars = DefaultMaxJSONChars
	}
	return &JSONExtractor{maxChars: maxChars}
}

func (e *JSONExtractor) Extract(_ context.Context, file domain.UploadedFile) (domain.ExtractedDocument, error) {
	raw, err := DecodeText(file.Data, file.ContentType)
	if err != nil {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, err)
	}
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, errors.New("empty document"))
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, fmt.Errorf("invalid json: %w", err))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, fmt.Errorf("indent json: %w", err))
	}

	summary := domain.StructureSummary{}
	switch v := value.(type) {
	case []any:
		summary.Rows = len(v)
	case map[string]any:
		summary.Columns = len(v)
	}

	text := pretty.String()
	truncated := false
	if runes := []rune(text); len(runes) > e.maxChars {
		text = string(runes[:e.maxChars]) + fmt.Sprintf("\n[... %d more characters omitted]", len(runes)-e.maxChars)
		truncated = true
	}

	return domain.ExtractedDocument{
		Filename:  file.Filename,
		Kind:      domain.KindJSON,
		Text:      "JSON data:\n" + text,
		Summary:   summary,
		Truncated: truncated,
	}, nil
}
