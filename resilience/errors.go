package resilience

import "errors"

var (
	// ErrCircuitOpen is returned without calling the operation while the
	// breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit open")

	// ErrRetriesExhausted wraps the last error once every attempt failed.
	ErrRetriesExhausted = errors.New("resilience: retries exhausted")
)
