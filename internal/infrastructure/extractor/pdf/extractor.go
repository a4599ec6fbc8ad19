package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

const DefaultMaxPages = 10

// Extractor reads the text layer of the first maxPages pages.
type Extractor struct {
	maxPages int
}

func NewExtractor(maxPages int) *Extractor {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Extractor{maxPages: maxPages}
}

func (e *Extractor) Extract(ctx context.Context, file domain.UploadedFile) (doc domain.ExtractedDocument, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			doc = domain.ExtractedDocument{}
			err = domain.UnsupportedFormat(file.Filename, fmt.Errorf("corrupt pdf: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(file.Data), int64(len(file.Data)))
	if err != nil {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, fmt.Errorf("open pdf: %w", err))
	}

	total := reader.NumPage()
	if total == 0 {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, errors.New("pdf has no pages"))
	}
	limit := min(total, e.maxPages)

	var b strings.Builder
	for i := 1; i <= limit; i++ {
		if err := ctx.Err(); err != nil {
			return domain.ExtractedDocument{}, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, fmt.Errorf("read page %d: %w", i, err))
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s\n\n", i, text)
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, errors.New("pdf has no extractable text"))
	}
	truncated := total > limit
	if truncated {
		text += fmt.Sprintf("\n\n[... %d more pages omitted]", total-limit)
	}

	return domain.ExtractedDocument{
		Filename:  file.Filename,
		Kind:      domain.KindPDF,
		Text:      text,
		Summary:   domain.StructureSummary{Pages: total},
		Truncated: truncated,
	}, nil
}
