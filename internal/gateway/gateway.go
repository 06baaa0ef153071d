package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/timmy/newstagger/internal/logger"
	"golang.org/x/time/rate"
)

// CompletionRequest is one chat completion exchange.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int     // 0 uses the transport default
	Temperature  float64 // 0 uses the transport default
	JSONMode     bool
}

// Completer sends one chat completion and returns the reply text.
// Implementations should return *Error for failures they can classify.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Request is one structured call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Schema       Schema
	// Timeout bounds each attempt; zero uses Config.Timeout.
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// Response is a validated structured reply.
type Response struct {
	Fields   map[string]string
	Raw      string
	Attempts int
}

// Config is the call policy shared by every request.
type Config struct {
	MaxAttempts int
	Timeout     time.Duration
	Backoff     Backoff
	// SchemaRetries is how many schema violations are retried before failing.
	SchemaRetries int

	RequestsPerSecond float64 // 0 disables rate limiting
	Burst             int
}

// DefaultConfig returns the default call policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		Timeout:       60 * time.Second,
		Backoff:       DefaultBackoff(),
		SchemaRetries: 1,
	}
}

// Gateway wraps a Completer with retries, per-attempt timeouts and reply
// validation. It holds no per-call state and is safe for concurrent use.
type Gateway struct {
	completer Completer
	cfg       Config
	limiter   *rate.Limiter

	sleep func(ctx context.Context, d time.Duration) error
	rnd   func() float64
}

// New creates a gateway over completer.
func New(completer Completer, cfg Config) (*Gateway, error) {
	if completer == nil {
		return nil, errors.New("gateway: completer is required")
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("gateway: max attempts must be at least 1, got %d", cfg.MaxAttempts)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("gateway: timeout must be positive")
	}
	if cfg.SchemaRetries < 0 {
		cfg.SchemaRetries = 0
	}

	g := &Gateway{
		completer: completer,
		cfg:       cfg,
		sleep:     sleepContext,
		rnd:       rand.Float64,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return g, nil
}

// Config returns the gateway's call policy.
func (g *Gateway) Config() Config {
	return g.cfg
}

// step is the outcome of one attempt.
type step int

const (
	stepSuccess step = iota
	stepRetry
	stepTerminal
)

// Call runs the request through attempting(n) -> success | retry -> attempting(n+1) | terminal.
func (g *Gateway) Call(ctx context.Context, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = g.cfg.Timeout
	}
	log := logger.FromContext(ctx)

	schemaFailures := 0
	for attempt := 1; ; attempt++ {
		raw, fields, err := g.attempt(ctx, req, timeout)
		next, gerr := g.next(ctx, attempt, err, &schemaFailures)

		switch next {
		case stepSuccess:
			if attempt > 1 {
				log.WithField(logger.FieldAttempt, attempt).Debug("Model call succeeded after retry")
			}
			return &Response{Fields: fields, Raw: raw, Attempts: attempt}, nil

		case stepTerminal:
			gerr.Attempts = attempt
			return nil, gerr

		case stepRetry:
			delay := g.cfg.Backoff.Delay(attempt, g.rnd())
			if gerr.RetryAfter > delay {
				// Hints are capped at MaxDelay; the sleep below ignores batch cancellation.
				if limit := g.cfg.Backoff.MaxDelay; limit > 0 && gerr.RetryAfter > limit {
					log.WithFields(logger.Fields{
						logger.FieldAttempt: attempt,
						logger.FieldReason:  string(gerr.Kind),
						"retry_after_ms":    gerr.RetryAfter.Milliseconds(),
						"max_delay_ms":      limit.Milliseconds(),
					}).WithError(causeOf(gerr)).Warn("Retry-After exceeds maximum delay, giving up")
					gerr.Attempts = attempt
					return nil, gerr
				}
				delay = gerr.RetryAfter
			}
			log.WithFields(logger.Fields{
				logger.FieldAttempt: attempt,
				logger.FieldReason:  string(gerr.Kind),
				"retry_delay_ms":    delay.Milliseconds(),
			}).WithError(causeOf(gerr)).Warn("Model call failed, retrying")

			if err := g.sleep(ctx, delay); err != nil {
				return nil, &Error{Kind: KindOf(err), Attempts: attempt, Err: err}
			}
		}
	}
}

// attempt performs a single exchange under its own deadline.
func (g *Gateway) attempt(ctx context.Context, req Request, timeout time.Duration) (string, map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := g.completer.Complete(attemptCtx, CompletionRequest{
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   req.UserPrompt,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
		JSONMode:     true,
	})
	if err != nil {
		if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return "", nil, &Error{Kind: KindTimeout, Err: err}
		}
		return "", nil, err
	}

	fields, err := req.Schema.Parse(raw)
	if err != nil {
		return raw, nil, err
	}
	return raw, fields, nil
}

// next decides the transition after an attempt.
func (g *Gateway) next(ctx context.Context, attempt int, err error, schemaFailures *int) (step, *Error) {
	if err == nil {
		return stepSuccess, nil
	}

	// The caller gave up; nothing more will be sent.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return stepTerminal, &Error{Kind: KindOf(ctxErr), Err: err}
	}

	gerr := classify(err)
	if gerr.Kind == KindSchemaViolation {
		*schemaFailures++
		if *schemaFailures > g.cfg.SchemaRetries {
			return stepTerminal, gerr
		}
	}
	if !gerr.Kind.Retryable() || attempt >= g.cfg.MaxAttempts {
		return stepTerminal, gerr
	}
	return stepRetry, gerr
}

// causeOf returns the error to log for gerr, falling back to gerr itself
// when it wraps nothing.
func causeOf(gerr *Error) error {
	if gerr.Err != nil {
		return gerr.Err
	}
	return gerr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
