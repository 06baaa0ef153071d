package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/newstagger/internal/domain"
	"github.com/timmy/newstagger/internal/repository"
	"github.com/timmy/newstagger/internal/source"
)

type fakeFinder struct {
	got      repository.NewsFilter
	articles []domain.NewsArticle
	err      error
}

func (f *fakeFinder) FindInWindow(_ context.Context, filter repository.NewsFilter) ([]domain.NewsArticle, error) {
	f.got = filter
	return f.articles, f.err
}

func TestAdapter_Fetch(t *testing.T) {
	day := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	finder := &fakeFinder{articles: []domain.NewsArticle{
		{NewsID: "A1", NewsDate: day, Content: "<div>台積電&nbsp;法說會</div>", RelatedProduct: "AS"},
		{NewsID: "A2", NewsDate: day, Content: "<img src=x>"},
		{NewsID: "A3", NewsDate: day, Content: "鴻海  AI 伺服器"},
	}}
	filters := Filters{
		IncludeProducts: []string{"AS"},
		ExcludeProducts: []string{"NO300011"},
		ExcludeSubjects: []string{"經濟日報"},
		NewsTypes:       []string{"頭條新聞"},
	}
	a := NewAdapter(finder, filters)

	window := source.Window{Start: day.AddDate(0, 0, -2), End: day}
	records, err := a.Fetch(context.Background(), window)
	require.NoError(t, err)

	assert.Equal(t, window.Start, finder.got.Start)
	assert.Equal(t, window.End, finder.got.End)
	assert.Equal(t, filters.NewsTypes, finder.got.NewsTypes)
	assert.Equal(t, filters.ExcludeSubjects, finder.got.ExcludeSubjects)

	require.Len(t, records, 2)
	assert.Equal(t, "A1", records[0].RecordID)
	assert.Equal(t, "台積電 法說會", records[0].Text)
	assert.Equal(t, "A3", records[1].RecordID)
	assert.Equal(t, "鴻海 AI 伺服器", records[1].Text)
}

func TestAdapter_FetchError(t *testing.T) {
	a := NewAdapter(&fakeFinder{err: errors.New("connection refused")}, Filters{})
	_, err := a.Fetch(context.Background(), source.Window{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
