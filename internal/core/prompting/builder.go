// Package prompting turns an extracted document and a task into a bounded chat prompt.
package prompting

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

const (
	// TruncationMarker ends every user message whose content was cut to fit the budget.
	TruncationMarker = "...[truncated]"
	// MinContentChars is the smallest budget that still leaves room for the message header.
	MinContentChars = 256
)

const analystPersona = "You are an expert data analyst and insights extractor. " +
	"Provide detailed, actionable insights based on the provided content."

// DefaultInsightsInstructions is used by insights tasks that carry no instructions of their own.
const DefaultInsightsInstructions = `Analyze the provided file content and extract key insights. Focus on:
1. Main themes and patterns
2. Important data points or findings
3. Potential areas of interest or concern
4. Summary of key takeaways
5. Actionable recommendations if applicable`

type Config struct {
	// MaxContentChars bounds the user message in bytes. Tasks may override it via ContentChars.
	MaxContentChars int
}

type Builder struct {
	maxContentChars int
}

func New(cfg Config) (*Builder, error) {
	if cfg.MaxContentChars <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new prompt builder", errors.New("max content chars is required"))
	}
	if cfg.MaxContentChars < MinContentChars {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new prompt builder",
			fmt.Errorf("max content chars %d is below minimum %d", cfg.MaxContentChars, MinContentChars))
	}
	return &Builder{maxContentChars: cfg.MaxContentChars}, nil
}

func (b *Builder) Build(doc domain.ExtractedDocument, task domain.TaskDescriptor) (domain.PromptPayload, error) {
	budget := b.maxContentChars
	if task.ContentChars > 0 {
		if task.ContentChars < MinContentChars {
			return domain.PromptPayload{}, domain.WrapError(domain.ErrInvalidInput, "build prompt",
				fmt.Errorf("task %q content chars %d is below minimum %d", task.Name, task.ContentChars, MinContentChars))
		}
		budget = task.ContentChars
	}

	var system string
	switch task.Kind {
	case domain.TaskCategorize:
		system = categorizeSystem(task)
	case domain.TaskQuality:
		system = qualitySystem(task)
	case domain.TaskInsights:
		system = insightsSystem(task)
	default:
		return domain.PromptPayload{}, domain.WrapError(domain.ErrInvalidInput, "build prompt", fmt.Errorf("unknown task kind %q", task.Kind))
	}

	user, truncated := truncate(userMessage(doc), budget)
	return domain.PromptPayload{
		Model:       task.Model,
		System:      system,
		User:        user,
		MaxTokens:   task.MaxTokens,
		Temperature: task.Temperature,
		Truncated:   truncated,
	}, nil
}

func userMessage(doc domain.ExtractedDocument) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "File: %s\nType: %s\n", doc.Filename, doc.Kind)
	if structure := doc.Summary.Describe(); structure != "" {
		fmt.Fprintf(&sb, "Structure: %s\n", structure)
	}
	sb.WriteString("\nContent:\n")
	sb.WriteString(doc.Text)
	return sb.String()
}

// truncate cuts s on a rune boundary so that the result, marker included, fits in budget bytes.
func truncate(s string, budget int) (string, bool) {
	if len(s) <= budget {
		return s, false
	}
	cut := budget - len(TruncationMarker) - 1
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n" + TruncationMarker, true
}

func categorizeSystem(task domain.TaskDescriptor) string {
	var sb strings.Builder
	sb.WriteString("You are an expert at categorizing business documents and messages.\n")
	sb.WriteString("Assign the content to exactly one of the following categories:\n\n")
	for i, c := range task.Categories {
		fmt.Fprintf(&sb, "%d. %q", i+1, c.Label)
		if c.Description != "" {
			fmt.Fprintf(&sb, " - %s", c.Description)
		}
		sb.WriteByte('\n')
	}
	example := ""
	if len(task.Categories) > 0 {
		example = task.Categories[0].Label
	}
	sb.WriteString("\nAnswer only with the category label and a confidence value between 0 and 1, ")
	fmt.Fprintf(&sb, "separated by a pipe symbol (|). Example: \"%s|0.85\"", example)
	if instructions := strings.TrimSpace(task.Instructions); instructions != "" {
		fmt.Fprintf(&sb, "\n\n%s", instructions)
	}
	return sb.String()
}

func qualitySystem(task domain.TaskDescriptor) string {
	var sb strings.Builder
	sb.WriteString("You are a meticulous reviewer. Evaluate the provided content against each of the ")
	sb.WriteString("following criteria and score every criterion from 0 (very poor) to 10 (excellent):\n\n")
	for i, c := range task.Criteria {
		fmt.Fprintf(&sb, "%d. %s", i+1, c.Label)
		if c.Description != "" {
			fmt.Fprintf(&sb, " - %s", c.Description)
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("\nRespond with a single JSON object and nothing else, using exactly this shape:\n")
	sb.WriteString(`{"overall_score": <number 0-10>, "criteria": [{"criterion": "<label>", "score": <number 0-10>, ` +
		`"assessment": "<one or two sentences>", "issues": ["<issue>"]}]}`)
	sb.WriteString("\nInclude exactly one entry per criterion and use the criterion labels exactly as listed.")
	if instructions := strings.TrimSpace(task.Instructions); instructions != "" {
		fmt.Fprintf(&sb, "\n\n%s", instructions)
	}
	return sb.String()
}

func insightsSystem(task domain.TaskDescriptor) string {
	instructions := strings.TrimSpace(task.Instructions)
	if instructions == "" {
		instructions = DefaultInsightsInstructions
	}
	return analystPersona + "\n\nAnalysis request:\n" + instructions +
		"\n\nPlease provide a detailed analysis with clear insights and recommendations."
}
