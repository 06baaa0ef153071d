package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/newstagger/internal/domain"
	"github.com/timmy/newstagger/internal/gateway"
	"github.com/timmy/newstagger/internal/prompts"
)

// routedCompleter answers extraction and summary prompts from separate scripts.
type routedCompleter struct {
	mu        sync.Mutex
	extract   []string
	summarize []string
	errs      map[string]error
	calls     map[string]int
}

func (c *routedCompleter) Complete(_ context.Context, req gateway.CompletionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}

	op, script := "extract", c.extract
	if strings.Contains(req.UserPrompt, `"`+KeySummary+`"`) {
		op, script = "summarize", c.summarize
	}
	n := c.calls[op]
	c.calls[op]++

	if err := c.errs[op]; err != nil {
		return "", err
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	return script[n], nil
}

func (c *routedCompleter) count(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

func newTestTagger(t *testing.T, c gateway.Completer) *Tagger {
	t.Helper()
	gw, err := gateway.New(c, gateway.Config{
		MaxAttempts:   3,
		Timeout:       time.Second,
		Backoff:       gateway.Backoff{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
		SchemaRetries: 1,
	})
	require.NoError(t, err)
	return NewTagger(gw, prompts.Defaults(), TaggerConfig{
		Timeout:         time.Second,
		SummaryMinRunes: 100,
		SummaryMaxRunes: 150,
	})
}

func summaryReply(text string) string {
	return `{"` + KeySummary + `": "` + text + `"}`
}

func TestTagger_TSMCArticle(t *testing.T) {
	summary := strings.Repeat("台積電營收創新高", 15)
	require.Equal(t, 120, utf8.RuneCountInString(summary))

	c := &routedCompleter{
		extract:   []string{"```json\n{\"股票標的\": \"台積電(2330)\"}\n```"},
		summarize: []string{summaryReply(summary)},
	}
	tagger := newTestTagger(t, c)
	records := []domain.NewsRecord{{
		SnapDate: time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
		RecordID: "N1",
		Text:     "台積電股份有限公司公布四月營收，年增率超過四成，法人看好下半年表現。",
	}}
	p := newTestPipeline(t, tagger, 2)

	rows, err := p.Run(quietContext(), records)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, domain.RowStatusSuccess, row.Status)
	assert.Equal(t, "台積電(2330)", row.Extraction.Describe())
	n := utf8.RuneCountInString(row.Summary.Describe())
	assert.GreaterOrEqual(t, n, 100)
	assert.LessOrEqual(t, n, 150)
}

func TestTagger_NoTargetArticle(t *testing.T) {
	c := &routedCompleter{
		extract:   []string{`{"股票標的": "無"}`},
		summarize: []string{summaryReply(strings.Repeat("央行維持利率不變", 13))},
	}
	tagger := newTestTagger(t, c)

	ctx := quietContext()
	extraction := tagger.ExtractTarget(ctx, "央行理監事會決議維持利率不變。")
	assert.Equal(t, domain.ExtractionNoTarget, extraction.Kind)

	summary := tagger.Summarize(ctx, "央行理監事會決議維持利率不變。")
	assert.False(t, summary.Failed())
	assert.Equal(t, 1, c.count("summarize"))
}

func TestTagger_SummaryTooShortIsRetriedThenFails(t *testing.T) {
	c := &routedCompleter{summarize: []string{summaryReply("太短")}}
	tagger := newTestTagger(t, c)

	summary := tagger.Summarize(quietContext(), "新聞內容")
	assert.True(t, summary.Failed())
	assert.Equal(t, "failed(schema_violation)", summary.Describe())
	assert.Equal(t, 2, c.count("summarize"))
}

func TestTagger_SummaryRecoversAfterSchemaRetry(t *testing.T) {
	c := &routedCompleter{summarize: []string{
		"抱歉，我無法提供 JSON",
		summaryReply(strings.Repeat("半導體", 40)),
	}}
	tagger := newTestTagger(t, c)

	summary := tagger.Summarize(quietContext(), "新聞內容")
	assert.False(t, summary.Failed())
	assert.Equal(t, 2, c.count("summarize"))
}

func TestTagger_MalformedTargetIsSchemaViolation(t *testing.T) {
	c := &routedCompleter{extract: []string{`{"股票標的": "台積電"}`}}
	tagger := newTestTagger(t, c)

	extraction := tagger.ExtractTarget(quietContext(), "新聞內容")
	assert.True(t, extraction.Failed())
	assert.Equal(t, "schema_violation", extraction.Reason)
}

func TestTagger_TransportFailureReason(t *testing.T) {
	c := &routedCompleter{errs: map[string]error{
		"extract": &gateway.Error{Kind: gateway.KindRateLimited, Err: errors.New("status 429")},
	}}
	tagger := newTestTagger(t, c)

	extraction := tagger.ExtractTarget(quietContext(), "新聞內容")
	assert.Equal(t, "failed(rate_limited)", extraction.Describe())
	assert.Equal(t, 3, c.count("extract"))
}

func TestTagger_ClientErrorNotRetried(t *testing.T) {
	c := &routedCompleter{errs: map[string]error{
		"summarize": &gateway.Error{Kind: gateway.KindClient, Err: errors.New("status 400")},
	}}
	tagger := newTestTagger(t, c)

	summary := tagger.Summarize(quietContext(), "新聞內容")
	assert.Equal(t, "failed(client_error)", summary.Describe())
	assert.Equal(t, 1, c.count("summarize"))
}

func TestParseStockDesc(t *testing.T) {
	tests := []struct {
		in       string
		wantKind domain.ExtractionKind
		wantDesc string
		wantErr  bool
	}{
		{in: "台積電(2330)", wantKind: domain.ExtractionTarget, wantDesc: "台積電(2330)"},
		{in: "台積電（２３３０）", wantKind: domain.ExtractionTarget, wantDesc: "台積電(2330)"},
		{in: " 鴻海 (2317) ", wantKind: domain.ExtractionTarget, wantDesc: "鴻海(2317)"},
		{in: "無", wantKind: domain.ExtractionNoTarget, wantDesc: "none"},
		{in: "None", wantKind: domain.ExtractionNoTarget, wantDesc: "none"},
		{in: "", wantKind: domain.ExtractionNoTarget, wantDesc: "none"},
		{in: "台積電", wantErr: true},
		{in: "台積電(233)", wantErr: true},
		{in: "(2330)", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStockDesc(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantDesc, got.Describe())
		})
	}
}
