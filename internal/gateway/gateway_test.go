package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/newstagger/internal/logger"
)

type reply struct {
	text string
	err  error
}

// scriptedCompleter returns replies in order, repeating the last one.
type scriptedCompleter struct {
	mu       sync.Mutex
	replies  []reply
	requests []CompletionRequest
	block    bool
}

func (s *scriptedCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	s.mu.Lock()
	idx := len(s.requests)
	s.requests = append(s.requests, req)
	block := s.block
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	r := s.replies[idx]
	return r.text, r.err
}

func (s *scriptedCompleter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

var targetSchema = Schema{
	Name:   "stock_target",
	Fields: []Field{{Name: "股票標的", Required: true}},
}

const validReply = `{"股票標的": "台積電(2330)"}`

func newTestGateway(t *testing.T, c Completer, mutate func(*Config)) (*Gateway, *[]time.Duration) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Timeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	g, err := New(c, cfg)
	require.NoError(t, err)

	var delays []time.Duration
	g.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	g.rnd = func() float64 { return 0.5 }
	return g, &delays
}

func call(g *Gateway) (*Response, error) {
	return g.Call(context.Background(), Request{SystemPrompt: "sys", UserPrompt: "user", Schema: targetSchema})
}

func TestGateway_SuccessFirstAttempt(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{{text: validReply}}}
	g, delays := newTestGateway(t, c, nil)

	resp, err := call(g)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Attempts)
	assert.Equal(t, "台積電(2330)", resp.Fields["股票標的"])
	assert.Empty(t, *delays)
	assert.True(t, c.requests[0].JSONMode)
}

func TestGateway_TransientThenSuccess(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{
		{err: &Error{Kind: KindTimeout, Err: context.DeadlineExceeded}},
		{text: validReply},
	}}
	g, delays := newTestGateway(t, c, nil)

	resp, err := call(g)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
	assert.LessOrEqual(t, resp.Attempts, g.Config().MaxAttempts)
	assert.Equal(t, []time.Duration{time.Second}, *delays)
}

func TestGateway_PersistentFailureUsesExactAttemptBound(t *testing.T) {
	for _, maxAttempts := range []int{1, 3, 5} {
		c := &scriptedCompleter{replies: []reply{{err: errors.New("connection reset by peer")}}}
		g, delays := newTestGateway(t, c, func(cfg *Config) { cfg.MaxAttempts = maxAttempts })

		_, err := call(g)
		require.Error(t, err)
		assert.Equal(t, KindTransport, KindOf(err))
		assert.Equal(t, maxAttempts, c.calls())
		assert.Len(t, *delays, maxAttempts-1)

		var gerr *Error
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, maxAttempts, gerr.Attempts)
	}
}

func TestGateway_BackoffGrows(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{{err: &Error{Kind: KindTransport}}}}
	g, delays := newTestGateway(t, c, func(cfg *Config) { cfg.MaxAttempts = 4 })

	_, err := call(g)
	require.Error(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *delays)
}

func TestGateway_RateLimitedHonorsRetryAfter(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{
		{err: &Error{Kind: KindRateLimited, RetryAfter: 7 * time.Second}},
		{text: validReply},
	}}
	g, delays := newTestGateway(t, c, nil)

	resp, err := call(g)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, []time.Duration{7 * time.Second}, *delays)
}

func TestGateway_RetryAfterBeyondMaxDelayIsTerminal(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{
		{err: &Error{Kind: KindRateLimited, RetryAfter: 2 * time.Hour}},
		{text: validReply},
	}}
	g, delays := newTestGateway(t, c, nil)

	_, err := call(g)
	require.Error(t, err)
	assert.Equal(t, KindRateLimited, KindOf(err))
	assert.Equal(t, 1, c.calls())
	assert.Empty(t, *delays)

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, 1, gerr.Attempts)
}

func TestGateway_RetryAfterAtMaxDelayIsHonored(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{
		{err: &Error{Kind: KindRateLimited, RetryAfter: 30 * time.Second}},
		{text: validReply},
	}}
	g, delays := newTestGateway(t, c, nil)

	resp, err := call(g)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, []time.Duration{g.Config().Backoff.MaxDelay}, *delays)
}

func TestGateway_RetryLogNamesKindWithoutCause(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&logger.Config{Level: "debug", Format: "json", Output: &buf})
	c := &scriptedCompleter{replies: []reply{
		{err: &Error{Kind: KindRateLimited}},
		{text: validReply},
	}}
	g, _ := newTestGateway(t, c, nil)

	_, err := g.Call(log.WithContext(context.Background()), Request{SystemPrompt: "sys", UserPrompt: "user", Schema: targetSchema})
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.SplitN(buf.String(), "\n", 2)[0]), &entry))
	assert.Equal(t, "Model call failed, retrying", entry["message"])
	assert.Equal(t, "rate_limited", entry["error"])
}

func TestGateway_ClientErrorNotRetried(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{{err: &Error{Kind: KindClient, Err: errors.New("HTTP 400")}}}}
	g, delays := newTestGateway(t, c, nil)

	_, err := call(g)
	require.Error(t, err)
	assert.Equal(t, KindClient, KindOf(err))
	assert.Equal(t, 1, c.calls())
	assert.Empty(t, *delays)
}

func TestGateway_SchemaViolationRetriedOnce(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{{text: "抱歉，我無法回答"}}}
	g, _ := newTestGateway(t, c, func(cfg *Config) { cfg.MaxAttempts = 5 })

	_, err := call(g)
	require.Error(t, err)
	assert.Equal(t, KindSchemaViolation, KindOf(err))
	assert.True(t, errors.Is(err, ErrSchemaViolation))
	assert.Equal(t, 2, c.calls())
}

func TestGateway_SchemaViolationThenValid(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{
		{text: `{"wrong_key": "x"}`},
		{text: "```json\n" + validReply + "\n```"},
	}}
	g, _ := newTestGateway(t, c, nil)

	resp, err := call(g)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, "台積電(2330)", resp.Fields["股票標的"])
}

func TestGateway_SchemaRetryConsumesAttemptBudget(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{
		{err: &Error{Kind: KindTransport}},
		{text: "not json"},
		{text: validReply},
	}}
	g, _ := newTestGateway(t, c, func(cfg *Config) { cfg.MaxAttempts = 2 })

	_, err := call(g)
	require.Error(t, err)
	assert.Equal(t, KindSchemaViolation, KindOf(err))
	assert.Equal(t, 2, c.calls())
}

func TestGateway_PerAttemptTimeout(t *testing.T) {
	c := &scriptedCompleter{block: true}
	g, _ := newTestGateway(t, c, func(cfg *Config) { cfg.MaxAttempts = 2 })

	_, err := g.Call(context.Background(), Request{Schema: targetSchema, Timeout: 20 * time.Millisecond})
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Equal(t, 2, c.calls())
}

func TestGateway_CanceledContext(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{{text: validReply}}}
	g, _ := newTestGateway(t, c, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Call(ctx, Request{Schema: targetSchema})
	require.Error(t, err)
	assert.Equal(t, KindCanceled, KindOf(err))
	assert.Equal(t, 0, c.calls())
}

func TestGateway_RateLimiterEnabled(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{{text: validReply}}}
	g, _ := newTestGateway(t, c, func(cfg *Config) {
		cfg.RequestsPerSecond = 1000
		cfg.Burst = 2
	})
	require.NotNil(t, g.limiter)

	for i := 0; i < 3; i++ {
		_, err := call(g)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, c.calls())
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{{text: validReply}}}

	_, err := New(nil, DefaultConfig())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.MaxAttempts = 0
	_, err = New(c, cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Timeout = 0
	_, err = New(c, cfg)
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, ""},
		{&Error{Kind: KindRateLimited}, KindRateLimited},
		{errors.Join(errors.New("wrap"), &Error{Kind: KindClient}), KindClient},
		{context.DeadlineExceeded, KindTimeout},
		{context.Canceled, KindCanceled},
		{ErrSchemaViolation, KindSchemaViolation},
		{errors.New("boom"), KindRecord},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, JitterFactor: 0.5}

	assert.Equal(t, 100*time.Millisecond, b.Delay(1, 0.5))
	assert.Equal(t, 400*time.Millisecond, b.Delay(3, 0.5))
	assert.Equal(t, time.Second, b.Delay(10, 0.5))

	// jitter stays within ±JitterFactor/2
	assert.Equal(t, 75*time.Millisecond, b.Delay(1, 0))
	assert.InDelta(t, float64(125*time.Millisecond), float64(b.Delay(1, 0.999999)), float64(time.Microsecond))
}
