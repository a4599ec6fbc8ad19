package tabular

import (
	"fmt"
	"strings"
)

const DefaultPreviewRows = 10

// renderPreview describes a table by its shape and the first previewRows data rows.
// rows excludes the header.
func renderPreview(label string, header []string, rows [][]string, previewRows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d rows x %d columns\n", label, len(rows), columnCount(header, rows))
	if len(header) > 0 {
		fmt.Fprintf(&b, "Columns: %s\n", strings.Join(header, ", "))
	}

	shown := rows
	if len(shown) > previewRows {
		shown = shown[:previewRows]
	}
	if len(shown) == 0 {
		b.WriteString("\n(no data rows)")
		return b.String()
	}

	fmt.Fprintf(&b, "\nFirst %d rows:\n", len(shown))
	if len(header) > 0 {
		b.WriteString(joinCells(header))
		b.WriteByte('\n')
	}
	for _, row := range shown {
		b.WriteString(joinCells(row))
		b.WriteByte('\n')
	}
	if omitted := len(rows) - len(shown); omitted > 0 {
		fmt.Fprintf(&b, "[... %d more rows omitted]", omitted)
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinCells(cells []string) string {
	cleaned := make([]string, len(cells))
	for i, cell := range cells {
		cleaned[i] = strings.Join(strings.Fields(cell), " ")
	}
	return strings.Join(cleaned, " | ")
}

func columnCount(header []string, rows [][]string) int {
	columns := len(header)
	for _, row := range rows {
		if len(row) > columns {
			columns = len(row)
		}
	}
	return columns
}
