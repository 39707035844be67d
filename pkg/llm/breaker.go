package llm

import (
	"sync"
	"time"
)

// breaker is a consecutive-failure circuit breaker. It opens once failures
// reach maxFailures and fails all calls fast until ttl elapses from the open
// timestamp; the first call after that resets the counter and proceeds. There
// is no half-open probe state: the reset admits all callers again.
type breaker struct {
	mu          sync.Mutex
	maxFailures int
	ttl         time.Duration
	failures    int
	openedAt    time.Time // zero while closed
}

func newBreaker(maxFailures int, ttl time.Duration) *breaker {
	return &breaker{maxFailures: maxFailures, ttl: ttl}
}

// Allow reports whether a call may proceed, resetting the breaker when the
// open period has elapsed.
func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openedAt.IsZero() {
		return true
	}
	if time.Since(b.openedAt) > b.ttl {
		b.failures = 0
		b.openedAt = time.Time{}
		return true
	}
	return false
}

// RecordSuccess closes the breaker and clears the failure count.
func (b *breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openedAt = time.Time{}
}

// RecordFailure counts one failure, opening the breaker at the threshold.
// Retries inside a single call must not reach here; only final outcomes do.
func (b *breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.maxFailures {
		b.openedAt = time.Now()
	}
}
