package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FillSide mirrors OrderSide for the engine's own fill records, kept
// distinct so the core's decimal fill model does not depend on the
// fixed-point order model used by the rest of the bot.
type FillSide string

const (
	FillSideBuy  FillSide = "BUY"
	FillSideSell FillSide = "SELL"
)

// Fill is one leg's realized (or simulated) execution.
type Fill struct {
	TokenID     string
	Side        FillSide
	Quantity    decimal.Decimal
	PriceVWAP   decimal.Decimal
	FeesPaid    decimal.Decimal
	SlippageBps decimal.Decimal
	TxHash      string
	IsSimulated bool
	Timestamp   time.Time
	TraceID     string
}

// ErrorKind classifies why a TxResult did not reach DONE_SUCCESS.
type ErrorKind string

const (
	ErrorKindNone               ErrorKind = ""
	ErrorKindRetryableExhausted ErrorKind = "RETRYABLE_EXHAUSTED"
	ErrorKindTerminal           ErrorKind = "TERMINAL"
	ErrorKindCircuitOpen        ErrorKind = "CIRCUIT_OPEN"
	ErrorKindDuplicateSuppress  ErrorKind = "DUPLICATE_SUPPRESSED"
	ErrorKindCancelled          ErrorKind = "CANCELLED"
)

// TxStatus is the terminal disposition of a live two-leg execution.
type TxStatus string

const (
	TxStatusSuccess TxStatus = "SUCCESS"
	TxStatusPartial TxStatus = "PARTIAL"
	TxStatusFailed  TxStatus = "FAILED"
)

// TxResult is the single terminal outcome produced for every admitted
// Signal, live or simulated.
type TxResult struct {
	Signal         Signal
	Status         TxStatus
	YesFill        *Fill
	NoFill         *Fill
	Attempt        int
	ErrorKind      ErrorKind
	IdempotencyKey string
	Nonces         []uint64
}

// Success reports whether both legs completed.
func (r TxResult) Success() bool {
	return r.Status == TxStatusSuccess
}
