package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/timmy/newstagger/internal/domain"
)

// utf8BOM lets spreadsheet tools detect UTF-8 for Chinese text.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileName returns the export file name for a window ending on windowEnd.
func FileName(windowEnd time.Time) string {
	return fmt.Sprintf("news_tags_%s.csv", windowEnd.Format(domain.SnapDateLayout))
}

// WriteCSV writes the table as UTF-8 CSV with a BOM and a header row.
func WriteCSV(w io.Writer, table domain.Table) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	columns := table.Columns
	if len(columns) == 0 {
		columns = domain.TableColumns
	}
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range table.Rows {
		if err := cw.Write(row.Values()); err != nil {
			return fmt.Errorf("failed to write row %s: %w", row.NewsID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the table to dir and returns the file path. The file is
// written to a temporary name first and renamed into place.
func SaveCSV(dir string, windowEnd time.Time, table domain.Table) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, FileName(windowEnd))
	tmp, err := os.CreateTemp(dir, ".news_tags_*.csv")
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, table); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move export file into place: %w", err)
	}
	return path, nil
}
