package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

const (
	DefaultMaxParagraphs = 500
	documentPart         = "word/document.xml"
	// Guards against zip bombs; word/document.xml of a real document is far smaller.
	maxDocumentPartBytes = 64 << 20
)

// Extractor reads paragraph text from word/document.xml of a .docx package.
type Extractor struct {
	maxParagraphs int
}

func NewExtractor(maxParagraphs int) *Extractor {
	if maxParagraphs <= 0 {
		maxParagraphs = DefaultMaxParagraphs
	}
	return &Extractor{maxParagraphs: maxParagraphs}
}

func (e *Extractor) Extract(ctx context.Context, file domain.UploadedFile) (domain.ExtractedDocument, error) {
	archive, err := zip.NewReader(bytes.NewReader(file.Data), int64(len(file.Data)))
	if err != nil {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, fmt.Errorf("open docx: %w", err))
	}

	part, err := archive.Open(documentPart)
	if err != nil {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, fmt.Errorf("open %s: %w", documentPart, err))
	}
	defer part.Close()

	paragraphs, err := readParagraphs(ctx, io.LimitReader(part, maxDocumentPartBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.ExtractedDocument{}, ctxErr
		}
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, err)
	}
	if len(paragraphs) == 0 {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, errors.New("docx has no text"))
	}

	total := len(paragraphs)
	truncated := total > e.maxParagraphs
	if truncated {
		paragraphs = paragraphs[:e.maxParagraphs]
	}
	text := strings.Join(paragraphs, "\n")
	if truncated {
		text += fmt.Sprintf("\n\n[... %d more paragraphs omitted]", total-e.maxParagraphs)
	}

	return domain.ExtractedDocument{
		Filename:  file.Filename,
		Kind:      domain.KindDocx,
		Text:      text,
		Summary:   domain.StructureSummary{Paragraphs: total},
		Truncated: truncated,
	}, nil
}

// readParagraphs walks the WordprocessingML token stream. Only w:t text, w:tab and w:br are
// kept; empty paragraphs are dropped.
func readParagraphs(ctx context.Context, r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", documentPart, err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if text := strings.TrimSpace(current.String()); text != "" {
		paragraphs = append(paragraphs, text)
	}
	return paragraphs, nil
}
