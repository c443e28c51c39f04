package executor

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/book"
	"github.com/polyarb/engine/internal/domain"
)

func TestSimulatedExecutorFullFill(t *testing.T) {
	store := book.New(10)
	store.ApplySnapshot("yes1", nil, []domain.OrderLevel{{Price: decimal.RequireFromString("0.45"), Size: decimal.NewFromInt(100)}}, 1, time.Now().UTC())
	store.ApplySnapshot("no1", nil, []domain.OrderLevel{{Price: decimal.RequireFromString("0.50"), Size: decimal.NewFromInt(100)}}, 1, time.Now().UTC())

	sim := NewSimulatedExecutor(store, decimal.NewFromFloat(0.0035), decimal.NewFromInt(5), testLogger())
	sig := sampleSignal()

	result, err := sim.Execute(context.Background(), sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success, got %v", result.Status)
	}
	if !result.YesFill.IsSimulated || result.YesFill.TxHash != "" {
		t.Fatal("expected simulated fill with no tx hash")
	}

	wantFees := result.YesFill.Quantity.Mul(decimal.RequireFromString("0.45")).Mul(decimal.NewFromFloat(0.0035))
	if !result.YesFill.FeesPaid.Equal(wantFees) {
		t.Fatalf("expected fees %s, got %s", wantFees, result.YesFill.FeesPaid)
	}
	if !result.YesFill.SlippageBps.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected slippage_bps 5, got %s", result.YesFill.SlippageBps)
	}
	wantPrice := decimal.RequireFromString("0.45").Mul(decimal.NewFromInt(1).Add(decimal.NewFromInt(5).Div(decimal.NewFromInt(10_000))))
	if !result.YesFill.PriceVWAP.Equal(wantPrice) {
		t.Fatalf("expected slipped price %s, got %s", wantPrice, result.YesFill.PriceVWAP)
	}
}

func TestSimulatedExecutorPartialFillOnThinBook(t *testing.T) {
	store := book.New(10)
	store.ApplySnapshot("yes1", nil, []domain.OrderLevel{{Price: decimal.RequireFromString("0.45"), Size: decimal.NewFromInt(2)}}, 1, time.Now().UTC())
	store.ApplySnapshot("no1", nil, []domain.OrderLevel{{Price: decimal.RequireFromString("0.50"), Size: decimal.NewFromInt(100)}}, 1, time.Now().UTC())

	sim := NewSimulatedExecutor(store, decimal.NewFromFloat(0.0035), decimal.NewFromInt(5), testLogger())
	sig := sampleSignal() // admitted qty 10, but yes side only has 2 units at that price

	result, err := sim.Execute(context.Background(), sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.TxStatusPartial {
		t.Fatalf("expected PARTIAL, got %v", result.Status)
	}
}
