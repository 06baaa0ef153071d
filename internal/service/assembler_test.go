package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/timmy/newstagger/internal/domain"
)

func TestCollect_GroupsByDateKeepingSubmissionOrder(t *testing.T) {
	may3 := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	may4 := time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC)

	rows := []domain.ResultRow{
		domain.NewResultRow(0, domain.NewsRecord{SnapDate: may4, RecordID: "a"}, domain.NoTarget(), domain.SummaryOf("s0")),
		domain.NewResultRow(1, domain.NewsRecord{SnapDate: may3, RecordID: "b"}, domain.TargetFound("鴻海", "2317"), domain.SummaryOf("s1")),
		domain.NewResultRow(2, domain.NewsRecord{SnapDate: may4, RecordID: "c"}, domain.NoTarget(), domain.SummaryOf("s2")),
		domain.NewResultRow(3, domain.NewsRecord{SnapDate: may3, RecordID: "d"}, domain.NoTarget(), domain.SummaryOf("s3")),
	}
	// Completion order must not matter.
	shuffled := []domain.ResultRow{rows[2], rows[0], rows[3], rows[1]}

	table := Collect(shuffled)
	assert.Equal(t, domain.TableColumns, table.Columns)

	var ids []string
	for _, row := range table.Rows {
		ids = append(ids, row.NewsID)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
	assert.Equal(t, "20240503", table.Rows[0].SnapDate)
	assert.Equal(t, "鴻海(2317)", table.Rows[0].StockDesc)
}

func TestCollect_KeepsFailedRowsWithPlaceholders(t *testing.T) {
	rec := domain.NewsRecord{SnapDate: time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), RecordID: "x", RelatedProduct: "AS"}
	rows := []domain.ResultRow{
		domain.NewResultRow(0, rec, domain.ExtractionFailure("timeout"), domain.SummaryOf("摘要")),
		domain.NewResultRow(1, rec, domain.ExtractionFailure("canceled"), domain.SummaryFailure("canceled")),
	}

	table := Collect(rows)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, domain.TableRow{
		SnapDate: "20240503", NewsID: "x", RelatedProduct: "AS",
		StockDesc: "failed(timeout)", NewsSummary: "摘要", Status: domain.RowStatusPartialFailure,
	}, table.Rows[0])
	assert.Equal(t, "failed(canceled)", table.Rows[1].NewsSummary)
	assert.Equal(t, domain.RowStatusFailed, table.Rows[1].Status)
}

func TestCollect_Empty(t *testing.T) {
	table := Collect(nil)
	assert.Equal(t, 0, table.Len())
	assert.NotNil(t, table.Rows)
	assert.Equal(t, domain.TableColumns, table.Columns)
}
