package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/breaker"
	"github.com/polyarb/engine/internal/chainops"
	"github.com/polyarb/engine/internal/domain"
	"github.com/polyarb/engine/internal/idempotency"
	"github.com/polyarb/engine/internal/retry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedNonceSource struct{ nonce uint64 }

func (f fixedNonceSource) PendingNonceAt(ctx context.Context, address string) (uint64, error) {
	return f.nonce, nil
}

type stubSubmitter struct {
	failLeg   string
	failEvery bool // fail every call regardless of leg
}

func (s *stubSubmitter) SubmitOrder(ctx context.Context, leg LegOrder) (string, error) {
	if s.failEvery || leg.TokenID == s.failLeg {
		return "", errors.New("connection timeout")
	}
	return "0xdeadbeef" + leg.TokenID, nil
}

func (s *stubSubmitter) WaitForReceipt(ctx context.Context, txHash string) (SubmissionReceipt, error) {
	return SubmissionReceipt{
		TxHash:      txHash,
		FilledQty:   decimal.NewFromInt(10),
		FilledPrice: decimal.RequireFromString("0.45"),
		FeesPaid:    decimal.RequireFromString("0.01"),
	}, nil
}

func sampleSignal() domain.Signal {
	pair := domain.MarketPair{MarketID: "m1", YesTokenID: "yes1", NoTokenID: "no1"}
	opp := domain.ArbitrageOpportunity{
		Pair: pair, YesVWAP: decimal.RequireFromString("0.45"), NoVWAP: decimal.RequireFromString("0.50"),
		TraceID: "trace-1",
	}
	return domain.Signal{
		Opportunity:    opp,
		Edge:           domain.EdgeBreakdown{GasEst: decimal.RequireFromString("0.10")},
		IdempotencyKey: "idem-1",
		TraceID:        "trace-1",
		AdmittedQty:    decimal.NewFromInt(10),
	}
}

func newLiveExecutor(sub OrderSubmitter) *LiveExecutor {
	nm := chainops.New(fixedNonceSource{nonce: 1}, "0xabc", testLogger())
	_ = nm.Initialize(context.Background())
	cb := breaker.New("live", breaker.DefaultConfig())
	idem := idempotency.NewRegistry(100, time.Minute, nil)
	retryCfg := retry.DefaultConfig()
	retryCfg.BaseDelay = time.Millisecond
	retryCfg.MaxDelay = 2 * time.Millisecond
	return NewLiveExecutor(sub, nm, cb, idem, retryCfg, testLogger())
}

func TestLiveExecutorBothLegsSucceed(t *testing.T) {
	e := newLiveExecutor(&stubSubmitter{})
	result, err := e.Execute(context.Background(), sampleSignal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success, got status %v errorKind %v", result.Status, result.ErrorKind)
	}
	if result.YesFill == nil || result.NoFill == nil {
		t.Fatal("expected both fills present")
	}
	if len(result.Nonces) != 2 {
		t.Fatalf("expected 2 nonces allocated, got %d", len(result.Nonces))
	}
}

func TestLiveExecutorLeg2FailureYieldsPartial(t *testing.T) {
	e := newLiveExecutor(&stubSubmitter{failLeg: "no1"})
	result, err := e.Execute(context.Background(), sampleSignal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.TxStatusPartial {
		t.Fatalf("expected PARTIAL, got %v", result.Status)
	}
	if result.YesFill == nil || result.NoFill != nil {
		t.Fatal("expected yes fill only")
	}
}

func TestLiveExecutorDuplicateSuppressedReturnsSameResult(t *testing.T) {
	e := newLiveExecutor(&stubSubmitter{})
	sig := sampleSignal()
	first, err := e.Execute(context.Background(), sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := e.Execute(context.Background(), sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.IdempotencyKey != first.IdempotencyKey || !second.Success() {
		t.Fatal("expected duplicate submission to return the prior successful result")
	}
}

func TestLiveExecutorCircuitOpenShortCircuits(t *testing.T) {
	e := newLiveExecutor(&stubSubmitter{failEvery: true})
	// Trip the breaker directly rather than exhausting retries three times.
	e.cb.Trip("forced for test")

	sig := sampleSignal()
	sig.IdempotencyKey = "idem-2"
	result, err := e.Execute(context.Background(), sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ErrorKind != domain.ErrorKindCircuitOpen {
		t.Fatalf("expected circuit open error kind, got %v", result.ErrorKind)
	}
}
