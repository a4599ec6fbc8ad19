package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/kirillkom/file-insights/internal/core/domain"
	"github.com/kirillkom/file-insights/internal/infrastructure/export"
)

const summaryWidth = 70

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFE66D"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func renderReport(w io.Writer, report domain.BatchReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		headerStyle.Render("#"),
		headerStyle.Render("FILE"),
		headerStyle.Render("STATUS"),
		headerStyle.Render("RESULT"),
		headerStyle.Render("TOKENS"))
	for _, outcome := range report.Outcomes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n",
			outcome.Index+1,
			outcome.Filename,
			styledStatus(export.Status(outcome)),
			resultSummary(outcome),
			outcome.Usage().Total,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	stats := report.Stats
	_, err := fmt.Fprintf(w, "\n%s\n", subtleStyle.Render(fmt.Sprintf(
		"task=%s files=%d succeeded=%d failed=%d skipped=%d tokens=%d duration=%s",
		report.Task, stats.Files, stats.Succeeded, stats.Failed, stats.Skipped, stats.Tokens.Total, report.Duration.Round(time.Millisecond),
	)))
	return err
}

func styledStatus(status string) string {
	switch status {
	case export.StatusOK:
		return successStyle.Render(status)
	case export.StatusSkipped:
		return warningStyle.Render(status)
	default:
		return errorStyle.Render(status)
	}
}

// resultSummary renders one outcome as a single table cell.
func resultSummary(outcome domain.FileOutcome) string {
	if outcome.Error != nil {
		return truncate(string(outcome.Error.Kind)+": "+outcome.Error.Message, summaryWidth)
	}
	if outcome.Result == nil {
		return ""
	}
	result := outcome.Result
	switch {
	case result.Category != nil:
		return fmt.Sprintf("%s (%.0f%%)", result.Category.Label, result.Category.Confidence*100)
	case result.Quality != nil:
		if result.Quality.OverallScore == nil {
			return "overall n/a"
		}
		return fmt.Sprintf("overall %.1f/10", *result.Quality.OverallScore)
	case result.Insights != nil:
		return truncate(firstLine(result.Insights.Text), summaryWidth)
	}
	return ""
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(strings.TrimLeft(line, "#*- ")); line != "" {
			return line
		}
	}
	return ""
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
