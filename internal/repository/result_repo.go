package repository

import (
	"context"

	"github.com/timmy/newstagger/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const upsertBatchSize = 200

// RowFilter narrows a result row listing.
type RowFilter struct {
	SnapDate string // domain.SnapDateLayout; empty matches all dates
	Status   domain.RowStatus
	Limit    int
	Offset   int
}

// ResultRepository persists tagged rows.
type ResultRepository struct {
	db *gorm.DB
}

// NewResultRepository creates a new ResultRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *ResultRepository: repository instance bound to db.
func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// UpsertRows writes one row per result, replacing any earlier row for the
// same snap date and news ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchID: batch job that produced the rows.
//   - rows: pipeline results.
//
// Returns:
//   - error: non-nil if the write fails.
func (r *ResultRepository) UpsertRows(ctx context.Context, batchID string, rows []domain.ResultRow) error {
	if len(rows) == 0 {
		return nil
	}
	tags := make([]*domain.NewsTag, 0, len(rows))
	for _, row := range rows {
		tags = append(tags, domain.NewNewsTag(batchID, row))
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "snap_date"}, {Name: "news_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"related_product", "stock_name", "stock_code", "stock_desc",
			"news_summary", "status", "failure_reason", "batch_id", "updated_at",
		}),
	}).CreateInBatches(tags, upsertBatchSize).Error
}

// ListRows returns persisted rows matching the filter and the total match count.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - f: date/status filter and paging.
//
// Returns:
//   - []domain.NewsTag: page of rows ordered by snap date and ID.
//   - int64: total rows matching the filter.
//   - error: non-nil if the query fails.
func (r *ResultRepository) ListRows(ctx context.Context, f RowFilter) ([]domain.NewsTag, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.NewsTag{})
	if f.SnapDate != "" {
		query = query.Where("snap_date = ?", f.SnapDate)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tags []domain.NewsTag
	page := query.Order("snap_date ASC").Order("id ASC").Offset(f.Offset)
	if f.Limit > 0 {
		page = page.Limit(f.Limit)
	}
	if err := page.Find(&tags).Error; err != nil {
		return nil, 0, err
	}
	return tags, total, nil
}
