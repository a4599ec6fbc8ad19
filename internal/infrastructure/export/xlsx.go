package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
)

// numericColumns are written as numbers so spreadsheets can aggregate them.
var numericColumns = map[int]bool{4: true, 5: true, 10: true, 11: true, 12: true}

func WriteXLSX(w io.Writer, report domain.BatchReport) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeSheetRow(f, resultsSheet, 1, toAny(Columns)); err != nil {
		return err
	}
	for i, row := range Rows(report) {
		if err := writeSheetRow(f, resultsSheet, i+2, typedCells(row)); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(resultsSheet, "A", "A", 32) // file
	_ = f.SetColWidth(resultsSheet, "D", "D", 24) // category
	_ = f.SetColWidth(resultsSheet, "G", "H", 60) // criteria, insights
	_ = f.SetColWidth(resultsSheet, "J", "J", 48) // error
	_ = f.SetPanes(resultsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	stats := report.Stats
	summary := [][]any{
		{"Batch", report.BatchID},
		{"Task", report.Task},
		{"Files", stats.Files},
		{"Succeeded", stats.Succeeded},
		{"Failed", stats.Failed},
		{"Skipped", stats.Skipped},
		{"Prompt Tokens", stats.Tokens.Prompt},
		{"Completion Tokens", stats.Tokens.Completion},
		{"Total Tokens", stats.Tokens.Total},
	}
	for i, row := range summary {
		if err := writeSheetRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 20)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeSheetRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func typedCells(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
		if !numericColumns[i] || v == "" {
			continue
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			out[i] = n
		}
	}
	return out
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
