package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/file-insights/internal/core/domain"
	"github.com/kirillkom/file-insights/internal/infrastructure/extractor/plaintext"
)

// CSVExtractor renders a delimited text table as a shape description plus a row preview.
type CSVExtractor struct {
	previewRows int
}

func NewCSVExtractor(previewRows int) *CSVExtractor {
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}
	return &CSVExtractor{previewRows: previewRows}
}

func (e *CSVExtractor) Extract(ctx context.Context, file domain.UploadedFile) (domain.ExtractedDocument, error) {
	text, err := plaintext.DecodeText(file.Data, file.ContentType)
	if err != nil {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, errors.New("empty document"))
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = detectDelimiter(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		if err := ctx.Err(); err != nil {
			return domain.ExtractedDocument{}, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, fmt.Errorf("read csv: %w", err))
		}
		if isBlankRecord(record) {
			continue
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, errors.New("no rows"))
	}

	header, rows := records[0], records[1:]
	return domain.ExtractedDocument{
		Filename: file.Filename,
		Kind:     domain.KindCSV,
		Text:     renderPreview("CSV data", header, rows, e.previewRows),
		Summary: domain.StructureSummary{
			Rows:    len(rows),
			Columns: columnCount(header, rows),
		},
		Truncated: len(rows) > e.previewRows,
	}, nil
}

// detectDelimiter picks the most frequent of comma, semicolon and tab on the first line.
func detectDelimiter(text string) rune {
	firstLine := text
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		firstLine = text[:idx]
	}
	best, bestCount := ',', strings.Count(firstLine, ",")
	for _, candidate := range []rune{';', '\t'} {
		if n := strings.Count(firstLine, string(candidate)); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}

func isBlankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
