// Package breaker provides per-endpoint circuit breaking for outbound calls.
//
// State is process-local and in-memory: it does not survive a restart and is
// not shared across horizontally scaled instances. Each process re-opens its
// own circuits, which is self-healing per process; a multi-instance
// deployment that needs shared breaker state has to externalize it.
package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a call is refused because the endpoint's
// circuit is open. It reads as a server error so the retry classifier treats
// it as a transient server_error rather than a distinct fatal class.
var ErrCircuitOpen = errors.New("circuit breaker open: server error")

// Defaults.
const (
	DefaultFailureThreshold = 5
	DefaultOpenTimeout      = 60 * time.Second
)

type circuitState struct {
	failureCount int
	openedAt     time.Time
}

// Breaker tracks consecutive failures per endpoint. A circuit opens after
// FailureThreshold consecutive failures and refuses calls for OpenTimeout,
// after which a single probing call is allowed through (half-open). Any
// success resets the circuit to closed.
type Breaker struct {
	mu        sync.Mutex
	circuits  map[string]*circuitState
	threshold int
	timeout   time.Duration
	now       func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithThreshold overrides the consecutive-failure threshold.
func WithThreshold(n int) Option {
	return func(b *Breaker) { b.threshold = n }
}

// WithOpenTimeout overrides how long an open circuit refuses calls.
func WithOpenTimeout(d time.Duration) Option {
	return func(b *Breaker) { b.timeout = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New returns a closed breaker with default threshold and timeout.
func New(opts ...Option) *Breaker {
	b := &Breaker{
		circuits:  make(map[string]*circuitState),
		threshold: DefaultFailureThreshold,
		timeout:   DefaultOpenTimeout,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Allow reports whether a call to the endpoint may proceed. When the open
// timeout has elapsed the call is allowed as a half-open probe; its outcome
// decides whether the circuit closes or re-opens.
func (b *Breaker) Allow(endpoint string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.circuits[endpoint]
	if !ok || state.failureCount < b.threshold {
		return nil
	}

	if b.now().Sub(state.openedAt) >= b.timeout {
		// Half-open: let one probe through. The failure count stays at the
		// threshold so a failed probe re-opens immediately.
		state.openedAt = b.now()

		return nil
	}

	return fmt.Errorf("%w: endpoint %s", ErrCircuitOpen, endpoint)
}

// IsOpen reports whether the endpoint's circuit currently refuses calls.
func (b *Breaker) IsOpen(endpoint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.circuits[endpoint]
	if !ok || state.failureCount < b.threshold {
		return false
	}

	return b.now().Sub(state.openedAt) < b.timeout
}

// RecordFailure counts one failed call. Crossing the threshold opens the
// circuit.
func (b *Breaker) RecordFailure(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.circuits[endpoint]
	if !ok {
		state = &circuitState{}
		b.circuits[endpoint] = state
	}

	state.failureCount++
	if state.failureCount >= b.threshold {
		state.openedAt = b.now()
	}
}

// RecordSuccess resets the endpoint's circuit to closed.
func (b *Breaker) RecordSuccess(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.circuits, endpoint)
}
