package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := newBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow(), "breaker must stay closed below the threshold")

	b.RecordFailure()
	assert.False(t, b.Allow(), "breaker must open at exactly maxFailures")
}

func TestBreakerSuccessClearsFailures(t *testing.T) {
	b := newBreaker(2, time.Minute)

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.True(t, b.Allow(), "success must reset the consecutive-failure count")
}

func TestBreakerResetsAfterTTL(t *testing.T) {
	b := newBreaker(1, 10*time.Millisecond)

	b.RecordFailure()
	assert.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow(), "breaker must admit calls after the open period elapses")

	// The reset cleared the counter, so one more failure is needed to reopen.
	b.RecordFailure()
	assert.False(t, b.Allow())
}
