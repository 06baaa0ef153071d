package repository

import (
	"context"
	"strings"
	"time"

	"github.com/timmy/newstagger/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewsFilter selects upstream news rows.
type NewsFilter struct {
	Start time.Time // inclusive date
	End   time.Time // inclusive date
	// IncludeProducts keeps rows whose related_product contains any of the codes.
	IncludeProducts []string
	// ExcludeProducts drops rows whose related_product contains any of the codes.
	ExcludeProducts []string
	// ExcludeSubjects drops rows whose subject contains any of the phrases.
	ExcludeSubjects []string
	// NewsTypes keeps only rows of these types; empty keeps all.
	NewsTypes []string
}

// NewsRepository reads the upstream news table.
type NewsRepository struct {
	db *gorm.DB
}

// NewNewsRepository creates a new NewsRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *NewsRepository: repository instance bound to db.
func NewNewsRepository(db *gorm.DB) *NewsRepository {
	return &NewsRepository{db: db}
}

// FindInWindow returns news rows matching the filter ordered by date then ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - f: date window and content filters.
//
// Returns:
//   - []domain.NewsArticle: matching rows.
//   - error: non-nil if the query fails.
func (r *NewsRepository) FindInWindow(ctx context.Context, f NewsFilter) ([]domain.NewsArticle, error) {
	start := dayStart(f.Start)
	end := dayStart(f.End).AddDate(0, 0, 1)

	query := r.db.WithContext(ctx).
		Where("news_date >= ? AND news_date < ?", start, end)

	if len(f.IncludeProducts) > 0 {
		conds := make([]string, 0, len(f.IncludeProducts))
		args := make([]interface{}, 0, len(f.IncludeProducts))
		for _, p := range f.IncludeProducts {
			conds = append(conds, "related_product LIKE ?")
			args = append(args, likePattern(p))
		}
		query = query.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
	for _, p := range f.ExcludeProducts {
		query = query.Where("related_product NOT LIKE ?", likePattern(p))
	}
	for _, s := range f.ExcludeSubjects {
		query = query.Where("subject NOT LIKE ?", likePattern(s))
	}
	if len(f.NewsTypes) > 0 {
		query = query.Where("news_type IN ?", f.NewsTypes)
	}

	var articles []domain.NewsArticle
	if err := query.Order("news_date ASC").Order("news_id ASC").Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

// Upsert inserts or replaces news rows keyed by news_id.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - articles: rows to write.
//
// Returns:
//   - error: non-nil if the write fails.
func (r *NewsRepository) Upsert(ctx context.Context, articles []domain.NewsArticle) error {
	if len(articles) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "news_id"}},
		UpdateAll: true,
	}).Create(&articles).Error
}

func likePattern(s string) string {
	return "%" + s + "%"
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
