// Package extractor turns uploaded files into text by dispatching on file format.
package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/file-insights/internal/core/domain"
	"github.com/kirillkom/file-insights/internal/infrastructure/extractor/docx"
	"github.com/kirillkom/file-insights/internal/infrastructure/extractor/outlook"
	"github.com/kirillkom/file-insights/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/file-insights/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/file-insights/internal/infrastructure/extractor/tabular"
)

type Config struct {
	MaxPages      int
	MaxParagraphs int
	PreviewRows   int
	MaxJSONChars  int
	// MaxFileBytes rejects larger files before parsing. Zero disables the check.
	MaxFileBytes int64
	Logger       *slog.Logger
}

type formatExtractor interface {
	Extract(ctx context.Context, file domain.UploadedFile) (domain.ExtractedDocument, error)
}

// Extractor implements ports.FileExtractor over all supported formats.
type Extractor struct {
	cfg     Config
	logger  *slog.Logger
	formats map[domain.FileKind]formatExtractor
}

func New(cfg Config) *Extractor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		cfg:    cfg,
		logger: logger,
		formats: map[domain.FileKind]formatExtractor{
			domain.KindText:     plaintext.NewExtractor(domain.KindText),
			domain.KindMarkdown: plaintext.NewExtractor(domain.KindMarkdown),
			domain.KindJSON:     plaintext.NewJSONExtractor(cfg.MaxJSONChars),
			domain.KindCSV:      tabular.NewCSVExtractor(cfg.PreviewRows),
			domain.KindXLSX:     tabular.NewXLSXExtractor(cfg.PreviewRows),
			domain.KindPDF:      pdf.NewExtractor(cfg.MaxPages),
			domain.KindDocx:     docx.NewExtractor(cfg.MaxParagraphs),
			domain.KindMessage:  outlook.NewExtractor(),
		},
	}
}

func (e *Extractor) Extract(ctx context.Context, file domain.UploadedFile) (domain.ExtractedDocument, error) {
	if len(file.Data) == 0 {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, errors.New("empty file"))
	}
	if e.cfg.MaxFileBytes > 0 && int64(len(file.Data)) > e.cfg.MaxFileBytes {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename,
			fmt.Errorf("file size %d exceeds limit %d", len(file.Data), e.cfg.MaxFileBytes))
	}

	kind, ok := Detect(file)
	if !ok {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename,
			fmt.Errorf("unrecognized format %q", strings.ToLower(filepath.Ext(file.Filename))))
	}

	doc, err := e.formats[kind].Extract(ctx, file)
	if err != nil {
		e.logger.Warn("extract.failed", "filename", file.Filename, "kind", kind, "error", err)
		return domain.ExtractedDocument{}, err
	}
	e.logger.Debug("extract.done",
		"filename", file.Filename,
		"kind", kind,
		"chars", utf8.RuneCountInString(doc.Text),
		"truncated", doc.Truncated,
	)
	return doc, nil
}

// Detect resolves the format of a file from its extension, then its declared content type,
// then its leading bytes.
func Detect(file domain.UploadedFile) (domain.FileKind, bool) {
	if kind, ok := kindByExtension(file.Filename); ok {
		return kind, true
	}
	if kind, ok := kindByContentType(file.ContentType); ok {
		return kind, true
	}
	return sniff(file.Data)
}

func kindByExtension(filename string) (domain.FileKind, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text", ".log":
		return domain.KindText, true
	case ".md", ".markdown":
		return domain.KindMarkdown, true
	case ".json":
		return domain.KindJSON, true
	case ".csv", ".tsv":
		return domain.KindCSV, true
	case ".xlsx":
		return domain.KindXLSX, true
	case ".pdf":
		return domain.KindPDF, true
	case ".docx":
		return domain.KindDocx, true
	case ".msg":
		return domain.KindMessage, true
	default:
		return "", false
	}
}

func kindByContentType(contentType string) (domain.FileKind, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	switch mediaType {
	case "text/markdown":
		return domain.KindMarkdown, true
	case "application/json":
		return domain.KindJSON, true
	case "text/csv":
		return domain.KindCSV, true
	case "application/pdf":
		return domain.KindPDF, true
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return domain.KindDocx, true
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return domain.KindXLSX, true
	case "application/vnd.ms-outlook":
		return domain.KindMessage, true
	default:
		return "", false
	}
}

var (
	pdfSignature  = []byte("%PDF-")
	ole2Signature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	zipSignature  = []byte("PK\x03\x04")
)

func sniff(data []byte) (domain.FileKind, bool) {
	switch {
	case bytes.HasPrefix(data, pdfSignature):
		return domain.KindPDF, true
	case bytes.HasPrefix(data, ole2Signature):
		return domain.KindMessage, true
	case bytes.HasPrefix(data, zipSignature):
		return sniffOfficeZip(data)
	}

	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}))
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return domain.KindJSON, true
	}
	if _, err := plaintext.DecodeText(data, ""); err == nil {
		return domain.KindText, true
	}
	return "", false
}

func sniffOfficeZip(data []byte) (domain.FileKind, bool) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", false
	}
	for _, f := range archive.File {
		switch f.Name {
		case "word/document.xml":
			return domain.KindDocx, true
		case "xl/workbook.xml":
			return domain.KindXLSX, true
		}
	}
	return "", false
}
