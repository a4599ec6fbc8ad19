package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "pipeline kind wins", err: fmt.Errorf("outer: %w", NewPipelineError(KindRateLimited, "a.txt", ErrTemporary)), want: KindRateLimited},
		{name: "unsupported", err: UnsupportedFormat("a.bin", errors.New("no text")), want: KindUnsupportedFormat},
		{name: "malformed", err: WrapError(ErrMalformedResponse, "parse", errors.New("empty")), want: KindMalformedResponse},
		{name: "unauthorized", err: WrapError(ErrUnauthorized, "infer", errors.New("401")), want: KindAuthError},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: KindTimeout},
		{name: "canceled", err: context.Canceled, want: KindTimeout},
		{name: "temporary", err: WrapError(ErrTemporary, "publish", errors.New("down")), want: KindTransportError},
		{name: "other", err: errors.New("boom"), want: KindUnknownError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ErrorKindOf(tc.err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestErrorKindRetryable(t *testing.T) {
	retryable := map[ErrorKind]bool{
		KindRateLimited:       true,
		KindTimeout:           true,
		KindTransportError:    true,
		KindAuthError:         false,
		KindUnknownError:      false,
		KindMalformedResponse: false,
		KindUnsupportedFormat: false,
	}
	for kind, want := range retryable {
		if got := kind.Retryable(); got != want {
			t.Fatalf("%s: expected retryable=%v", kind, want)
		}
	}
}

func TestWrapErrorKeepsKind(t *testing.T) {
	if WrapError(ErrInvalidInput, "op", nil) != nil {
		t.Fatalf("wrapping nil must stay nil")
	}
	err := WrapError(ErrInvalidInput, "resolve task", errors.New("unknown task"))
	if !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput kind")
	}
	if err.Error() != "resolve task: invalid input: unknown task" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestLabelKey(t *testing.T) {
	cases := map[string]string{
		"Code  Quality":      "code quality",
		" code\tquality\n":   "code quality",
		"Reporting anfragen": "reporting anfragen",
		"   ":                "",
	}
	for in, want := range cases {
		if got := LabelKey(in); got != want {
			t.Fatalf("LabelKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTaskDescriptorValidate(t *testing.T) {
	valid := TaskDescriptor{
		Name:       "mail",
		Kind:       TaskCategorize,
		Categories: []Category{{Label: "Rechnung"}, {Label: "Mahnung"}},
		Model:      "gpt-4o",
		MaxTokens:  50,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid task, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*TaskDescriptor)
		substr string
	}{
		{name: "no model", mutate: func(td *TaskDescriptor) { td.Model = " " }, substr: "model is required"},
		{name: "no max tokens", mutate: func(td *TaskDescriptor) { td.MaxTokens = 0 }, substr: "max tokens"},
		{name: "no categories", mutate: func(td *TaskDescriptor) { td.Categories = nil }, substr: "at least one category"},
		{name: "duplicate label", mutate: func(td *TaskDescriptor) { td.Categories = []Category{{Label: "A"}, {Label: " a "}} }, substr: "duplicate category"},
		{name: "inner whitespace duplicate", mutate: func(td *TaskDescriptor) { td.Categories = []Category{{Label: "Steuer  anfragen"}, {Label: "steuer anfragen"}} }, substr: "duplicate category"},
		{name: "inner whitespace duplicate criterion", mutate: func(td *TaskDescriptor) { td.Kind, td.Criteria = TaskQuality, []Criterion{{Label: "Code  Quality"}, {Label: "code quality"}} }, substr: "duplicate criterion"},
		{name: "empty label", mutate: func(td *TaskDescriptor) { td.Categories = []Category{{Label: ""}} }, substr: "empty category"},
		{name: "quality without criteria", mutate: func(td *TaskDescriptor) { td.Kind = TaskQuality }, substr: "at least one criterion"},
		{name: "unknown kind", mutate: func(td *TaskDescriptor) { td.Kind = "summarize" }, substr: "unknown task kind"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			td := valid
			tc.mutate(&td)
			err := td.Validate()
			if !IsKind(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.substr) {
				t.Fatalf("expected %q in %q", tc.substr, err.Error())
			}
		})
	}

	insights := TaskDescriptor{Name: "free", Kind: TaskInsights, Model: "gpt-4o", MaxTokens: 1000}
	if err := insights.Validate(); err != nil {
		t.Fatalf("insights task needs no labels, got %v", err)
	}
}

func TestStructureSummaryDescribe(t *testing.T) {
	if got := (StructureSummary{}).Describe(); got != "" {
		t.Fatalf("expected empty description, got %q", got)
	}
	got := StructureSummary{Rows: 120, Columns: 4, Sheets: 2}.Describe()
	if got != "rows=120 columns=4 sheets=2" {
		t.Fatalf("unexpected description %q", got)
	}
}

func TestExtractedDocumentPreview(t *testing.T) {
	short := ExtractedDocument{Text: "Ihre Rechnung"}
	if short.Preview() != "Ihre Rechnung" {
		t.Fatalf("short text must be returned unchanged")
	}
	long := ExtractedDocument{Text: strings.Repeat("ü", 250)}
	preview := long.Preview()
	if !strings.HasSuffix(preview, "...") || len([]rune(preview)) != 203 {
		t.Fatalf("expected 200 runes plus ellipsis, got %d runes", len([]rune(preview)))
	}
}

func TestFileErrorSkipped(t *testing.T) {
	if !(FileError{Kind: KindAuthError, Message: SkippedPrefix + "invalid api key"}).Skipped() {
		t.Fatalf("expected skipped")
	}
	if (FileError{Kind: KindAuthError, Message: "invalid api key"}).Skipped() {
		t.Fatalf("attempted file must not be reported as skipped")
	}
}

func TestTokenUsageAdd(t *testing.T) {
	got := TokenUsage{Prompt: 10, Completion: 2, Total: 12}.Add(TokenUsage{Prompt: 5, Completion: 1, Total: 6})
	if got != (TokenUsage{Prompt: 15, Completion: 3, Total: 18}) {
		t.Fatalf("unexpected sum %+v", got)
	}
}
