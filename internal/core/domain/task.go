package domain

import (
	"errors"
	"fmt"
	"strings"
)

type TaskKind string

const (
	TaskCategorize TaskKind = "categorize"
	TaskQuality    TaskKind = "quality"
	TaskInsights   TaskKind = "insights"
)

type Category struct {
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description,omitempty" yaml:"description"`
}

type Criterion struct {
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// TaskDescriptor says what to do with every file of a batch. It is treated as immutable.
type TaskDescriptor struct {
	Name         string      `json:"name"`
	Kind         TaskKind    `json:"kind"`
	Categories   []Category  `json:"categories,omitempty"`
	Criteria     []Criterion `json:"criteria,omitempty"`
	Instructions string      `json:"instructions,omitempty"`
	Model        string      `json:"model"`
	MaxTokens    int         `json:"max_tokens"`
	Temperature  float64     `json:"temperature"`
	// ContentChars overrides the prompt content budget for this task's model. Zero uses the default.
	ContentChars int `json:"content_chars,omitempty"`
}

func (t TaskDescriptor) Validate() error {
	var errs []error
	if strings.TrimSpace(t.Model) == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if t.MaxTokens <= 0 {
		errs = append(errs, errors.New("max tokens must be positive"))
	}
	switch t.Kind {
	case TaskCategorize:
		if len(t.Categories) == 0 {
			errs = append(errs, errors.New("categorization requires at least one category"))
		}
		errs = append(errs, uniqueLabels("category", categoryLabels(t.Categories))...)
	case TaskQuality:
		if len(t.Criteria) == 0 {
			errs = append(errs, errors.New("quality analysis requires at least one criterion"))
		}
		errs = append(errs, uniqueLabels("criterion", t.CriterionLabels())...)
	case TaskInsights:
	default:
		errs = append(errs, fmt.Errorf("unknown task kind %q", t.Kind))
	}
	if len(errs) == 0 {
		return nil
	}
	return WrapError(ErrInvalidInput, "validate task", errors.Join(errs...))
}

func (t TaskDescriptor) CategoryLabels() []string {
	return categoryLabels(t.Categories)
}

func (t TaskDescriptor) CriterionLabels() []string {
	labels := make([]string, 0, len(t.Criteria))
	for _, c := range t.Criteria {
		labels = append(labels, c.Label)
	}
	return labels
}

func categoryLabels(categories []Category) []string {
	labels := make([]string, 0, len(categories))
	for _, c := range categories {
		labels = append(labels, c.Label)
	}
	return labels
}

// LabelKey is the case- and whitespace-insensitive identity of a category or criterion label.
func LabelKey(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}

func uniqueLabels(what string, labels []string) []error {
	var errs []error
	seen := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		key := LabelKey(label)
		if key == "" {
			errs = append(errs, fmt.Errorf("empty %s label", what))
			continue
		}
		if _, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("duplicate %s label %q", what, label))
			continue
		}
		seen[key] = struct{}{}
	}
	return errs
}
