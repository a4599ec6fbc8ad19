package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

func zipWith(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	docxBytes := zipWith(t, map[string]string{"word/document.xml": "<w:document/>"})
	xlsxBytes := zipWith(t, map[string]string{"xl/workbook.xml": "<workbook/>"})

	tests := []struct {
		name string
		file domain.UploadedFile
		want domain.FileKind
		ok   bool
	}{
		{name: "txt extension", file: domain.UploadedFile{Filename: "notes.TXT", Data: []byte("x")}, want: domain.KindText, ok: true},
		{name: "markdown extension", file: domain.UploadedFile{Filename: "README.md", Data: []byte("# x")}, want: domain.KindMarkdown, ok: true},
		{name: "csv extension", file: domain.UploadedFile{Filename: "data.csv", Data: []byte("a,b")}, want: domain.KindCSV, ok: true},
		{name: "msg extension", file: domain.UploadedFile{Filename: "mail.msg", Data: []byte{0}}, want: domain.KindMessage, ok: true},
		{name: "content type", file: domain.UploadedFile{Filename: "upload", ContentType: "application/pdf; charset=binary", Data: []byte("x")}, want: domain.KindPDF, ok: true},
		{name: "pdf signature", file: domain.UploadedFile{Filename: "blob", Data: []byte("%PDF-1.7\n")}, want: domain.KindPDF, ok: true},
		{name: "ole2 signature", file: domain.UploadedFile{Filename: "blob", Data: []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0}}, want: domain.KindMessage, ok: true},
		{name: "docx zip", file: domain.UploadedFile{Filename: "blob", Data: docxBytes}, want: domain.KindDocx, ok: true},
		{name: "xlsx zip", file: domain.UploadedFile{Filename: "blob", Data: xlsxBytes}, want: domain.KindXLSX, ok: true},
		{name: "plain zip", file: domain.UploadedFile{Filename: "blob", Data: zipWith(t, map[string]string{"a.txt": "a"})}, ok: false},
		{name: "json sniff", file: domain.UploadedFile{Filename: "blob", Data: []byte("  [1,2]")}, want: domain.KindJSON, ok: true},
		{name: "text sniff", file: domain.UploadedFile{Filename: "blob", Data: []byte("hello")}, want: domain.KindText, ok: true},
		{name: "binary", file: domain.UploadedFile{Filename: "image.bin", Data: []byte{0x89, 'P', 'N', 'G', 0, 0}}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Detect(tt.file)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestExtractDispatchesByKind(t *testing.T) {
	ex := New(Config{})

	doc, err := ex.Extract(context.Background(), domain.UploadedFile{
		Filename: "report.docx",
		Data: zipWith(t, map[string]string{
			"word/document.xml": `<w:document xmlns:w="x"><w:body><w:p><w:r><w:t>Quarterly report</w:t></w:r></w:p></w:body></w:document>`,
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.KindDocx, doc.Kind)
	assert.Equal(t, "Quarterly report", doc.Text)
}

func TestExtractRejectsUnsupportedInput(t *testing.T) {
	ex := New(Config{MaxFileBytes: 8})

	tests := []struct {
		name string
		file domain.UploadedFile
	}{
		{name: "empty", file: domain.UploadedFile{Filename: "a.txt"}},
		{name: "too large", file: domain.UploadedFile{Filename: "a.txt", Data: []byte(strings.Repeat("x", 9))}},
		{name: "binary", file: domain.UploadedFile{Filename: "a.bin", Data: []byte{0xff, 0x00, 0x01}}},
		{name: "corrupt pdf", file: domain.UploadedFile{Filename: "a.pdf", Data: []byte("%PDF-1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ex.Extract(context.Background(), tt.file)
			require.Error(t, err)
			assert.Equal(t, domain.KindUnsupportedFormat, domain.ErrorKindOf(err))
			assert.True(t, domain.IsKind(err, domain.ErrUnsupportedFormat))
			assert.Contains(t, err.Error(), tt.file.Filename)
		})
	}
}
