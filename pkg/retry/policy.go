// Package retry computes backoff delays and retry eligibility for failed
// action attempts.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Category classifies an action failure for retry decisions.
type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryAuthentication Category = "authentication"
	CategoryAuthorization  Category = "authorization"
	CategoryTimeout        Category = "timeout"
	CategoryRateLimit      Category = "rate_limit"
	CategoryServerError    Category = "server_error"
	CategoryClientError    Category = "client_error"
	CategoryNetwork        Category = "network"
	CategoryUnknown        Category = "unknown"
)

// Policy computes exponential backoff delays and decides whether a failed
// attempt should be retried. The zero value is not usable; construct with
// NewPolicy.
type Policy struct {
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	MaxAttempts     int

	// Jitter adds ±10% randomness to computed delays to avoid thundering
	// herds. It is never applied to routing decisions, only backoff.
	Jitter bool
}

// Defaults.
const (
	DefaultBaseDelay       = 60 * time.Second
	DefaultMaxDelay        = 3600 * time.Second
	DefaultExponentialBase = 2.0
	DefaultMaxAttempts     = 3

	jitterFraction = 0.10
)

// NewPolicy returns a policy with the default backoff parameters.
func NewPolicy() *Policy {
	return &Policy{
		BaseDelay:       DefaultBaseDelay,
		MaxDelay:        DefaultMaxDelay,
		ExponentialBase: DefaultExponentialBase,
		MaxAttempts:     DefaultMaxAttempts,
	}
}

// CalculateDelay returns min(base * expBase^(attempt-1), max) for the given
// 1-based attempt number, with optional jitter.
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.BaseDelay) * math.Pow(p.ExponentialBase, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.Jitter {
		// Spread within ±10% of the computed delay.
		spread := delay * jitterFraction
		delay += (rand.Float64()*2 - 1) * spread
	}

	return time.Duration(delay)
}

// ShouldRetry reports whether another attempt is allowed. Validation and
// auth failures are never retried; transient transport categories are.
// Unknown categories default to retryable.
func (p *Policy) ShouldRetry(attempt int, category Category) bool {
	if attempt >= p.MaxAttempts {
		return false
	}

	switch category {
	case CategoryValidation, CategoryAuthentication, CategoryAuthorization:
		return false
	default:
		return true
	}
}
