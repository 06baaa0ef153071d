package source

import (
	"context"
	"time"

	"github.com/timmy/newstagger/internal/domain"
)

// Window is an inclusive range of calendar dates.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls on a date inside the window.
func (w Window) Contains(t time.Time) bool {
	d := truncateDate(t)
	return !d.Before(truncateDate(w.Start)) && !d.After(truncateDate(w.End))
}

// StartKey returns the window start in domain.SnapDateLayout.
func (w Window) StartKey() string {
	return w.Start.Format(domain.SnapDateLayout)
}

// EndKey returns the window end in domain.SnapDateLayout.
func (w Window) EndKey() string {
	return w.End.Format(domain.SnapDateLayout)
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Source defines the interface for news data sources.
type Source interface {
	// SourceID returns the unique identifier for this source.
	// Parameters: none.
	// Returns:
	//   - string: stable source identifier.
	SourceID() string

	// Fetch returns the cleaned records whose snap date falls in the window,
	// ordered by snap date then by source order.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - window: inclusive date range to load.
	// Returns:
	//   - records: ordered, non-empty-text news records.
	//   - err: non-nil if fetching fails.
	Fetch(ctx context.Context, window Window) ([]domain.NewsRecord, error)
}
