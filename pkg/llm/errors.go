package llm

import "errors"

var (
	// ErrBreakerOpen is returned while the circuit breaker is open. Callers
	// should treat the upstream model as unavailable and fail fast.
	ErrBreakerOpen = errors.New("llm circuit breaker open")

	// ErrUpstreamExhausted is returned when a call still fails after the
	// configured retry budget (transport errors and non-2xx responses).
	ErrUpstreamExhausted = errors.New("llm upstream failed after retries")

	// ErrMalformedResponse is returned when the model replies with a body
	// that cannot be parsed as JSON. Not retriable.
	ErrMalformedResponse = errors.New("llm returned malformed response")
)
