package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

var insightsSeparator = "\n\n" + strings.Repeat("=", 50) + "\n\n"

// WriteInsightsText writes one "File: ...\n\nInsights:\n..." block per outcome. Failed files
// carry "Error: <message>" in place of insights.
func WriteInsightsText(w io.Writer, report domain.BatchReport) error {
	blocks := make([]string, 0, len(report.Outcomes))
	for _, outcome := range report.Outcomes {
		blocks = append(blocks, fmt.Sprintf("File: %s\n\nInsights:\n%s", outcome.Filename, insightsBody(outcome)))
	}
	if _, err := io.WriteString(w, strings.Join(blocks, insightsSeparator)+"\n"); err != nil {
		return fmt.Errorf("write insights: %w", err)
	}
	return nil
}

func insightsBody(outcome domain.FileOutcome) string {
	if outcome.Error != nil {
		return "Error: " + outcome.Error.Message
	}
	result := outcome.Result
	switch {
	case result.Insights != nil:
		return result.Insights.Text
	case result.Category != nil:
		return fmt.Sprintf("Category: %s (confidence %s)", result.Category.Label, formatFloat(result.Category.Confidence))
	case result.Quality != nil:
		lines := []string{"Overall score: " + formatScore(result.Quality.OverallScore)}
		for _, c := range result.Quality.Criteria {
			value := domain.NotEvaluated
			if c.Score != nil {
				value = formatScore(c.Score)
			}
			line := fmt.Sprintf("- %s: %s", c.Label, value)
			if c.Assessment != "" && c.Assessment != domain.NotEvaluated {
				line += " - " + c.Assessment
			}
			lines = append(lines, line)
		}
		return strings.Join(lines, "\n")
	default:
		return ""
	}
}
