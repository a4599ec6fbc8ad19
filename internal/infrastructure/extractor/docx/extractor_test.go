package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		fmt.Fprintf(&body, `<w:p><w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p>`, p)
	}
	xml := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(xml))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractParagraphs(t *testing.T) {
	data := buildDocx(t, "Invoice review", "", "Line one</w:t><w:tab/><w:t>tabbed", "Break</w:t><w:br/><w:t>after")

	doc, err := NewExtractor(0).Extract(context.Background(), domain.UploadedFile{Filename: "memo.docx", Data: data})
	require.NoError(t, err)

	assert.Equal(t, domain.KindDocx, doc.Kind)
	assert.Equal(t, "Invoice review\nLine one\ttabbed\nBreak\nafter", doc.Text)
	assert.Equal(t, 3, doc.Summary.Paragraphs)
	assert.False(t, doc.Truncated)
}

func TestExtractCapsParagraphs(t *testing.T) {
	data := buildDocx(t, "one", "two", "three", "four")

	doc, err := NewExtractor(2).Extract(context.Background(), domain.UploadedFile{Filename: "long.docx", Data: data})
	require.NoError(t, err)

	assert.True(t, doc.Truncated)
	assert.Equal(t, 4, doc.Summary.Paragraphs)
	assert.Equal(t, "one\ntwo\n\n[... 2 more paragraphs omitted]", doc.Text)
}

func TestExtractRejectsNonDocx(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, err := w.Create("content.xml")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	for name, data := range map[string][]byte{
		"not a zip":    []byte("plain text"),
		"missing part": buf.Bytes(),
		"no text":      buildDocx(t, "", "  "),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewExtractor(0).Extract(context.Background(), domain.UploadedFile{Filename: "x.docx", Data: data})
			require.Error(t, err)
			assert.Equal(t, domain.KindUnsupportedFormat, domain.ErrorKindOf(err))
		})
	}
}
