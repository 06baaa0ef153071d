package database

import (
	"context"
	"fmt"

	"github.com/timmy/newstagger/internal/domain"
	"github.com/timmy/newstagger/internal/logger"
	"github.com/timmy/newstagger/internal/repository"
	"github.com/timmy/newstagger/internal/source"
)

// NewsFinder loads upstream news rows. *repository.NewsRepository implements it.
type NewsFinder interface {
	FindInWindow(ctx context.Context, f repository.NewsFilter) ([]domain.NewsArticle, error)
}

// Filters are the content rules applied on top of the date window.
type Filters struct {
	IncludeProducts []string
	ExcludeProducts []string
	ExcludeSubjects []string
	NewsTypes       []string
}

// Adapter implements source.Source over the news table.
type Adapter struct {
	finder  NewsFinder
	filters Filters
}

// NewAdapter creates a new database adapter.
// Parameters:
//   - finder: news table reader.
//   - filters: product, subject and news-type rules.
//
// Returns:
//   - *Adapter: initialized database adapter.
func NewAdapter(finder NewsFinder, filters Filters) *Adapter {
	return &Adapter{finder: finder, filters: filters}
}

// SourceID returns the unique identifier for this source.
func (a *Adapter) SourceID() string {
	return "database:news"
}

// Fetch queries the window and returns cleaned records. Rows whose body is
// empty after cleanup are dropped.
func (a *Adapter) Fetch(ctx context.Context, window source.Window) ([]domain.NewsRecord, error) {
	articles, err := a.finder.FindInWindow(ctx, repository.NewsFilter{
		Start:           window.Start,
		End:             window.End,
		IncludeProducts: a.filters.IncludeProducts,
		ExcludeProducts: a.filters.ExcludeProducts,
		ExcludeSubjects: a.filters.ExcludeSubjects,
		NewsTypes:       a.filters.NewsTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query news: %w", err)
	}

	records := make([]domain.NewsRecord, 0, len(articles))
	dropped := 0
	for _, art := range articles {
		text := source.CleanText(art.Content)
		if text == "" {
			dropped++
			continue
		}
		records = append(records, domain.NewsRecord{
			SnapDate:       art.NewsDate,
			RecordID:       art.NewsID,
			Text:           text,
			RelatedProduct: art.RelatedProduct,
		})
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldSource: a.SourceID(),
		logger.FieldCount:  len(records),
		"dropped":          dropped,
		"window_start":     window.StartKey(),
		"window_end":       window.EndKey(),
	}).Info("Loaded news from database")

	return records, nil
}
