package domain

import (
	"fmt"
	"strings"
)

// FileKind is the detected format of an uploaded file.
type FileKind string

const (
	KindText     FileKind = "text"
	KindMarkdown FileKind = "markdown"
	KindCSV      FileKind = "csv"
	KindJSON     FileKind = "json"
	KindPDF      FileKind = "pdf"
	KindDocx     FileKind = "docx"
	KindXLSX     FileKind = "xlsx"
	KindMessage  FileKind = "msg"
)

// UploadedFile is a user-submitted file. It lives for a single pipeline run.
type UploadedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type StructureSummary struct {
	Rows       int `json:"rows,omitempty"`
	Columns    int `json:"columns,omitempty"`
	Pages      int `json:"pages,omitempty"`
	Paragraphs int `json:"paragraphs,omitempty"`
	Sheets     int `json:"sheets,omitempty"`
}

// Describe renders the non-zero counters as a single line, e.g. "rows=120 columns=4".
func (s StructureSummary) Describe() string {
	parts := make([]string, 0, 5)
	if s.Rows > 0 {
		parts = append(parts, fmt.Sprintf("rows=%d", s.Rows))
	}
	if s.Columns > 0 {
		parts = append(parts, fmt.Sprintf("columns=%d", s.Columns))
	}
	if s.Sheets > 0 {
		parts = append(parts, fmt.Sprintf("sheets=%d", s.Sheets))
	}
	if s.Pages > 0 {
		parts = append(parts, fmt.Sprintf("pages=%d", s.Pages))
	}
	if s.Paragraphs > 0 {
		parts = append(parts, fmt.Sprintf("paragraphs=%d", s.Paragraphs))
	}
	return strings.Join(parts, " ")
}

// ExtractedDocument is the normalized text view of an UploadedFile.
type ExtractedDocument struct {
	Filename    string           `json:"filename"`
	Kind        FileKind         `json:"kind"`
	Text        string           `json:"-"`
	Summary     StructureSummary `json:"summary"`
	Truncated   bool             `json:"truncated,omitempty"`
	Attachments []string         `json:"attachments,omitempty"`
}

const previewChars = 200

// Preview returns the first 200 characters of the text, suffixed with "..." when cut.
func (d ExtractedDocument) Preview() string {
	runes := []rune(d.Text)
	if len(runes) <= previewChars {
		return d.Text
	}
	return string(runes[:previewChars]) + "..."
}
