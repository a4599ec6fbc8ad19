// Package export renders batch reports as CSV, XLSX and plain-text insights.
package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Columns is the header row shared by the CSV and XLSX exports.
var Columns = []string{
	"File",
	"Status",
	"Task",
	"Category",
	"Confidence",
	"Overall Score",
	"Criteria",
	"Insights",
	"Error Kind",
	"Error",
	"Prompt Tokens",
	"Completion Tokens",
	"Total Tokens",
}

// Rows converts every outcome into one row, in report order.
func Rows(report domain.BatchReport) [][]string {
	rows := make([][]string, 0, len(report.Outcomes))
	for _, outcome := range report.Outcomes {
		rows = append(rows, outcomeToRow(report.Task, outcome))
	}
	return rows
}

func outcomeToRow(task string, outcome domain.FileOutcome) []string {
	row := make([]string, len(Columns))
	row[0] = outcome.Filename
	row[1] = Status(outcome)
	row[2] = task

	if outcome.Error != nil {
		row[8] = string(outcome.Error.Kind)
		row[9] = outcome.Error.Message
	}

	usage := outcome.Usage()
	row[10] = strconv.Itoa(usage.Prompt)
	row[11] = strconv.Itoa(usage.Completion)
	row[12] = strconv.Itoa(usage.Total)

	result := outcome.Result
	if result == nil {
		return row
	}
	if result.Category != nil {
		row[3] = result.Category.Label
		row[4] = formatFloat(result.Category.Confidence)
	}
	if result.Quality != nil {
		row[5] = formatScore(result.Quality.OverallScore)
		row[6] = formatCriteria(result.Quality.Criteria)
	}
	if result.Insights != nil {
		row[7] = result.Insights.Text
	}
	return row
}

func Status(outcome domain.FileOutcome) string {
	switch {
	case outcome.Succeeded():
		return StatusOK
	case outcome.Error != nil && outcome.Error.Skipped():
		return StatusSkipped
	default:
		return StatusFailed
	}
}

// formatCriteria renders "Clarity: 7; Completeness: not evaluated".
func formatCriteria(criteria []domain.CriterionScore) string {
	parts := make([]string, 0, len(criteria))
	for _, c := range criteria {
		value := domain.NotEvaluated
		if c.Score != nil {
			value = formatScore(c.Score)
		}
		parts = append(parts, fmt.Sprintf("%s: %s", c.Label, value))
	}
	return strings.Join(parts, "; ")
}

func formatScore(score *float64) string {
	if score == nil {
		return ""
	}
	return formatFloat(*score)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
