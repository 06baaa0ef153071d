package service

import (
	"sort"

	"github.com/timmy/newstagger/internal/domain"
)

// Collect orders rows by snap date, then by submission index, and projects
// them onto the canonical output columns. Failed rows are kept with
// placeholder values.
func Collect(rows []domain.ResultRow) domain.Table {
	ordered := make([]domain.ResultRow, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		di, dj := ordered[i].Record.SnapDateKey(), ordered[j].Record.SnapDateKey()
		if di != dj {
			return di < dj
		}
		return ordered[i].Index < ordered[j].Index
	})

	table := domain.Table{
		Columns: append([]string(nil), domain.TableColumns...),
		Rows:    make([]domain.TableRow, 0, len(ordered)),
	}
	for _, row := range ordered {
		table.Rows = append(table.Rows, project(row))
	}
	return table
}

func project(row domain.ResultRow) domain.TableRow {
	return domain.TableRow{
		SnapDate:       row.Record.SnapDateKey(),
		NewsID:         row.Record.RecordID,
		RelatedProduct: row.Record.RelatedProduct,
		StockDesc:      row.Extraction.Describe(),
		NewsSummary:    row.Summary.Describe(),
		Status:         row.Status,
	}
}
