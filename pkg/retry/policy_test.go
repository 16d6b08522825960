package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateDelay(t *testing.T) {
	policy := NewPolicy()

	expected := []time.Duration{
		60 * time.Second,
		120 * time.Second,
		240 * time.Second,
		480 * time.Second,
		960 * time.Second,
		1920 * time.Second,
		3600 * time.Second, // capped
		3600 * time.Second,
		3600 * time.Second,
		3600 * time.Second,
	}

	for attempt := 1; attempt <= 10; attempt++ {
		assert.Equal(t, expected[attempt-1], policy.CalculateDelay(attempt), "attempt %d", attempt)
	}
}

func TestCalculateDelayJitterStaysWithinBounds(t *testing.T) {
	policy := NewPolicy()
	policy.Jitter = true

	for i := 0; i < 100; i++ {
		delay := policy.CalculateDelay(2)
		assert.GreaterOrEqual(t, delay, 108*time.Second)
		assert.LessOrEqual(t, delay, 132*time.Second)
	}
}

func TestShouldRetry(t *testing.T) {
	policy := NewPolicy()

	tests := []struct {
		name     string
		attempt  int
		category Category
		want     bool
	}{
		{"timeout retries", 1, CategoryTimeout, true},
		{"rate limit retries", 2, CategoryRateLimit, true},
		{"server error retries", 1, CategoryServerError, true},
		{"network retries", 1, CategoryNetwork, true},
		{"unknown defaults to retryable", 1, CategoryUnknown, true},
		{"validation never retries", 1, CategoryValidation, false},
		{"authentication never retries", 1, CategoryAuthentication, false},
		{"authorization never retries", 1, CategoryAuthorization, false},
		{"exhausted attempts", 3, CategoryTimeout, false},
		{"beyond max attempts", 5, CategoryNetwork, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.ShouldRetry(tt.attempt, tt.category))
		})
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		text string
		want Category
	}{
		{"request timed out after 30s", CategoryTimeout},
		{"context deadline exceeded", CategoryTimeout},
		{"rate limit exceeded, retry later", CategoryRateLimit},
		{"401 Unauthorized", CategoryAuthentication},
		{"403 Forbidden", CategoryAuthorization},
		{"validation failed on field url", CategoryValidation},
		{"dial tcp: connection refused", CategoryNetwork},
		{"lookup api.example.com: no such host", CategoryNetwork},
		{"internal server error", CategoryServerError},
		{"circuit breaker open for endpoint", CategoryServerError},
		{"something completely different", CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(errors.New(tt.text)))
		})
	}

	assert.Equal(t, CategoryUnknown, Categorize(nil))
}
