package workflow

import "sync"

// DefaultAccountLimit caps concurrent executions per account.
const DefaultAccountLimit = 100

// AccountLimiter tracks active execution counts per account. State is
// process-local: it does not survive a restart and is not shared across
// horizontally scaled instances.
type AccountLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	limit  int
}

func NewAccountLimiter(limit int) *AccountLimiter {
	if limit <= 0 {
		limit = DefaultAccountLimit
	}

	return &AccountLimiter{
		counts: make(map[string]int),
		limit:  limit,
	}
}

// Acquire reserves one execution slot for the account, failing with
// ErrConcurrencyLimitExceeded when the ceiling is reached.
func (l *AccountLimiter) Acquire(accountID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.counts[accountID] >= l.limit {
		return ErrConcurrencyLimitExceeded
	}

	l.counts[accountID]++

	return nil
}

// Release returns one slot. Callers pair it with Acquire via defer so every
// exit path, including panics unwinding, gives the slot back.
func (l *AccountLimiter) Release(accountID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.counts[accountID] <= 1 {
		delete(l.counts, accountID)

		return
	}

	l.counts[accountID]--
}

// Limit returns the per-account ceiling.
func (l *AccountLimiter) Limit() int {
	return l.limit
}

// Active returns the account's current slot usage.
func (l *AccountLimiter) Active(accountID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.counts[accountID]
}
