package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

// BOM makes Excel on Windows read the CSV as UTF-8.
var BOM = []byte{0xEF, 0xBB, 0xBF}

func WriteCSV(w io.Writer, report domain.BatchReport) error {
	if _, err := w.Write(BOM); err != nil {
		return fmt.Errorf("write csv bom: %w", err)
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := writer.WriteAll(Rows(report)); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}
