package tabular

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

// XLSXExtractor previews every sheet of a workbook.
type XLSXExtractor struct {
	previewRows int
}

func NewXLSXExtractor(previewRows int) *XLSXExtractor {
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}
	return &XLSXExtractor{previewRows: previewRows}
}

func (e *XLSXExtractor) Extract(ctx context.Context, file domain.UploadedFile) (domain.ExtractedDocument, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(file.Data))
	if err != nil {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, fmt.Errorf("open workbook: %w", err))
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, errors.New("workbook has no sheets"))
	}

	var (
		sections  []string
		summary   = domain.StructureSummary{Sheets: len(sheets)}
		truncated bool
	)
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return domain.ExtractedDocument{}, err
		}
		all, err := wb.GetRows(sheet)
		if err != nil {
			return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, fmt.Errorf("read sheet %q: %w", sheet, err))
		}
		records := make([][]string, 0, len(all))
		for _, row := range all {
			if !isBlankRecord(row) {
				records = append(records, row)
			}
		}
		if len(records) == 0 {
			sections = append(sections, fmt.Sprintf("Sheet %q: empty", sheet))
			continue
		}

		header, rows := records[0], records[1:]
		summary.Rows += len(rows)
		if cols := columnCount(header, rows); cols > summary.Columns {
			summary.Columns = cols
		}
		if len(rows) > e.previewRows {
			truncated = true
		}
		sections = append(sections, renderPreview(fmt.Sprintf("Sheet %q", sheet), header, rows, e.previewRows))
	}

	if summary.Rows == 0 && summary.Columns == 0 {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, errors.New("workbook has no data"))
	}

	return domain.ExtractedDocument{
		Filename:  file.Filename,
		Kind:      domain.KindXLSX,
		Text:      strings.Join(sections, "\n\n"),
		Summary:   summary,
		Truncated: truncated,
	}, nil
}
