package gateway

import (
	"math"
	"time"
)

// Backoff computes exponential delays with multiplicative jitter.
type Backoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultBackoff returns 1s doubling up to 30s with ±25% jitter.
func DefaultBackoff() Backoff {
	return Backoff{
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.5,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
// rnd is a uniform sample in [0, 1).
func (b Backoff) Delay(attempt int, rnd float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}

	delay := float64(b.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}

	delay *= 1.0 + (rnd-0.5)*b.JitterFactor
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
