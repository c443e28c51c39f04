package domain

import "time"

// CircuitState is one of the three states the live execution path's
// circuit breaker can occupy.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// CircuitSnapshot is a point-in-time read of the breaker's counters,
// used by diagnostics and telemetry.
type CircuitSnapshot struct {
	State               CircuitState
	ConsecutiveFailures int
	FailureRate         float64
	HalfOpenInFlight    int
	StateChangedAt      time.Time
	OpenUntil           time.Time
}

// NonceSnapshot is a point-in-time read of the nonce manager's state.
type NonceSnapshot struct {
	NextNonce     uint64
	PendingCount  int
	ConfirmedCount int
	PendingNonces []uint64
}
