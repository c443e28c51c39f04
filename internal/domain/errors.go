package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrSigningFailed = errors.New("signing failed")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrContextDone   = errors.New("context cancelled")
	ErrLockHeld      = errors.New("lock already held")

	// ErrInsufficientLiquidity is returned by a VWAP walk when the ladder
	// exhausts before the requested budget can be filled.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity to fill requested size")

	// ErrSequenceGap is recorded (not propagated to execution) when a feed
	// delta's sequence number skips ahead of the last applied value.
	ErrSequenceGap = errors.New("sequence gap detected")

	// ErrStaleDelta is recorded when a feed delta arrives at or before the
	// last applied sequence number for its token.
	ErrStaleDelta = errors.New("stale or duplicate sequence")

	// ErrCircuitOpen is returned by the live executor when the circuit
	// breaker is tripped and submissions are being rejected fast.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrDuplicateSuppressed is returned when an idempotency key is already
	// IN_FLIGHT or DONE_SUCCESS.
	ErrDuplicateSuppressed = errors.New("duplicate submission suppressed")

	// ErrNonceManagerUninitialized is returned when allocate is called
	// before the nonce manager has recovered the chain's pending nonce.
	ErrNonceManagerUninitialized = errors.New("nonce manager not initialized")

	// ErrRetriesExhausted is returned when an operation's retry budget is
	// consumed without success.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrInvariantViolation marks a programming-error-class failure (broken
	// book ordering, double nonce use, double idempotency finalize). It is
	// returned to the caller like any other error; nothing in the engine
	// stops the process on it.
	ErrInvariantViolation = errors.New("invariant violation")
)
