package plaintext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extractor handles plain text and Markdown.
type Extractor struct {
	kind domain.FileKind
}

func NewExtractor(kind domain.FileKind) *Extractor {
	if kind != domain.KindMarkdown {
		kind = domain.KindText
	}
	return &Extractor{kind: kind}
}

func (e *Extractor) Extract(_ context.Context, file domain.UploadedFile) (domain.ExtractedDocument, error) {
	raw, err := DecodeText(file.Data, file.ContentType)
	if err != nil {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, err)
	}

	text := strings.TrimSpace(normalizeNewlines(raw))
	if text == "" {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, errors.New("empty document"))
	}

	return domain.ExtractedDocument{
		Filename: file.Filename,
		Kind:     e.kind,
		Text:     text,
		Summary: domain.StructureSummary{
			Rows:       strings.Count(text, "\n") + 1,
			Paragraphs: countParagraphs(text),
		},
	}, nil
}

// DecodeText returns data as UTF-8. Non-UTF-8 input is decoded using BOM, declared charset or
// content sniffing; binary input (NUL bytes without a UTF-16 BOM) is rejected.
func DecodeText(data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty input")
	}
	if utf8.Valid(data) {
		if bytes.IndexByte(data, 0) >= 0 {
			return "", errors.New("binary content")
		}
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	}

	hasUTF16BOM := bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF})
	if !hasUTF16BOM && bytes.IndexByte(data, 0) >= 0 {
		return "", errors.New("binary content")
	}

	enc, name, _ := charset.DetermineEncoding(data, contentType)
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s text: %w", name, err)
	}
	return strings.TrimPrefix(string(decoded), "\uFEFF"), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func countParagraphs(text string) int {
	count := 0
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) != "" {
			count++
		}
	}
	return count
}
