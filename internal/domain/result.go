package domain

import "time"

// RowStatus represents how much of a record's processing succeeded.
// Values include RowStatusSuccess, RowStatusPartialFailure, and RowStatusFailed.
type RowStatus string

const (
	RowStatusSuccess        RowStatus = "success"
	RowStatusPartialFailure RowStatus = "partial_failure"
	RowStatusFailed         RowStatus = "failed"
)

// rank orders statuses from worst to best.
func (s RowStatus) rank() int {
	switch s {
	case RowStatusSuccess:
		return 2
	case RowStatusPartialFailure:
		return 1
	default:
		return 0
	}
}

// Better reports whether s is a strictly better status than other.
func (s RowStatus) Better(other RowStatus) bool {
	return s.rank() > other.rank()
}

// ResultRow combines one NewsRecord with its two outcomes.
// Index is the record's position in the submitted batch.
type ResultRow struct {
	Index      int
	Record     NewsRecord
	Extraction ExtractionOutcome
	Summary    SummaryOutcome
	Status     RowStatus
}

// NewResultRow builds a row and derives its status from the outcomes.
func NewResultRow(index int, record NewsRecord, extraction ExtractionOutcome, summary SummaryOutcome) ResultRow {
	return ResultRow{
		Index:      index,
		Record:     record,
		Extraction: extraction,
		Summary:    summary,
		Status:     deriveStatus(extraction.Failed(), summary.Failed()),
	}
}

func deriveStatus(extractionFailed, summaryFailed bool) RowStatus {
	switch {
	case extractionFailed && summaryFailed:
		return RowStatusFailed
	case extractionFailed || summaryFailed:
		return RowStatusPartialFailure
	default:
		return RowStatusSuccess
	}
}

// FailureReason returns the first failure reason on the row, if any.
func (r ResultRow) FailureReason() string {
	if r.Extraction.Failed() {
		return r.Extraction.Reason
	}
	if r.Summary.Failed() {
		return r.Summary.Reason
	}
	return ""
}

// NewsTag is a persisted ResultRow, keyed by snap date and news ID.
type NewsTag struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SnapDate       string    `gorm:"type:text;not null;index:idx_news_tags_key,unique" json:"snap_date"`
	NewsID         string    `gorm:"type:text;not null;index:idx_news_tags_key,unique" json:"news_id"`
	RelatedProduct string    `gorm:"type:text" json:"related_product"`
	StockName      string    `gorm:"type:text" json:"stock_name,omitempty"`
	StockCode      string    `gorm:"type:text;index:idx_news_tags_code" json:"stock_code,omitempty"`
	StockDesc      string    `gorm:"type:text" json:"stock_desc"`
	NewsSummary    string    `gorm:"type:text" json:"news_summary"`
	Status         RowStatus `gorm:"type:text;index:idx_news_tags_status" json:"status"`
	FailureReason  string    `gorm:"type:text" json:"failure_reason,omitempty"`
	BatchID        string    `gorm:"type:text;index" json:"batch_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for NewsTag.
func (NewsTag) TableName() string {
	return "news_tags"
}

// NewNewsTag projects a ResultRow onto its persisted form.
func NewNewsTag(batchID string, row ResultRow) *NewsTag {
	tag := &NewsTag{
		SnapDate:       row.Record.SnapDateKey(),
		NewsID:         row.Record.RecordID,
		RelatedProduct: row.Record.RelatedProduct,
		StockDesc:      row.Extraction.Describe(),
		NewsSummary:    row.Summary.Describe(),
		Status:         row.Status,
		FailureReason:  row.FailureReason(),
		BatchID:        batchID,
	}
	if row.Extraction.Kind == ExtractionTarget {
		tag.StockName = row.Extraction.Target.Name
		tag.StockCode = row.Extraction.Target.Code
	}
	return tag
}
