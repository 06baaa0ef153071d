package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failed model call.
type Kind string

const (
	KindTimeout         Kind = "timeout"
	KindRateLimited     Kind = "rate_limited"
	KindSchemaViolation Kind = "schema_violation"
	KindTransport       Kind = "transport_error"
	KindClient          Kind = "client_error"
	KindCanceled        Kind = "canceled"
	// KindRecord is an uncategorized failure attributable to one record.
	KindRecord Kind = "record_error"
)

// Retryable reports whether another attempt may succeed.
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindRateLimited, KindTransport, KindSchemaViolation:
		return true
	default:
		return false
	}
}

// Error is returned by Gateway.Call and by Completer implementations.
type Error struct {
	Kind     Kind
	Attempts int
	// RetryAfter is the provider's backoff hint, zero when absent.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s after %d attempt(s)", msg, e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrSchemaViolation is wrapped by every response validation failure.
var ErrSchemaViolation = errors.New("response does not match schema")

// KindOf returns the failure kind of err. Errors that carry no gateway
// classification are reported as KindRecord.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	switch {
	case errors.Is(err, ErrSchemaViolation):
		return KindSchemaViolation
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}
	return KindRecord
}

// classify turns an attempt error into a gateway error. Unclassified
// transport failures are treated as retryable transport errors.
func classify(err error) *Error {
	var gerr *Error
	if errors.As(err, &gerr) {
		return &Error{Kind: gerr.Kind, RetryAfter: gerr.RetryAfter, Err: gerr.Err}
	}
	kind := KindOf(err)
	if kind == KindRecord {
		kind = KindTransport
	}
	return &Error{Kind: kind, Err: err}
}
