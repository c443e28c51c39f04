package arbitrage

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/book"
	"github.com/polyarb/engine/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func lvl(price, size string) domain.OrderLevel {
	return domain.OrderLevel{Price: decimal.RequireFromString(price), Size: decimal.RequireFromString(size)}
}

// Clear arbitrage accept.
func TestDetectClearArbitrage(t *testing.T) {
	store := book.New(50)
	store.ApplySnapshot("yes", nil, []domain.OrderLevel{lvl("0.45", "100")}, 1, time.Now())
	store.ApplySnapshot("no", nil, []domain.OrderLevel{lvl("0.50", "100")}, 1, time.Now())

	d := NewPairDetector(store, decimal.RequireFromString("10"), testLogger())
	pair := domain.MarketPair{MarketID: "m1", YesTokenID: "yes", NoTokenID: "no"}
	d.RegisterPair(pair)

	opp, err := d.Detect(pair)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	if !opp.YesVWAP.Equal(decimal.RequireFromString("0.45")) {
		t.Fatalf("expected yes_vwap 0.45, got %s", opp.YesVWAP)
	}
	if !opp.NoVWAP.Equal(decimal.RequireFromString("0.50")) {
		t.Fatalf("expected no_vwap 0.50, got %s", opp.NoVWAP)
	}
	wantGross := decimal.RequireFromString("0.05")
	if !opp.ExpectedProfitPerUnit.Equal(wantGross) {
		t.Fatalf("expected gross_per_unit 0.05, got %s", opp.ExpectedProfitPerUnit)
	}
}

func TestDetectNoOpportunityWhenSumExceedsOne(t *testing.T) {
	store := book.New(50)
	store.ApplySnapshot("yes", nil, []domain.OrderLevel{lvl("0.55", "100")}, 1, time.Now())
	store.ApplySnapshot("no", nil, []domain.OrderLevel{lvl("0.50", "100")}, 1, time.Now())

	d := NewPairDetector(store, decimal.RequireFromString("10"), testLogger())
	pair := domain.MarketPair{MarketID: "m1", YesTokenID: "yes", NoTokenID: "no"}
	d.RegisterPair(pair)

	opp, err := d.Detect(pair)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opp != nil {
		t.Fatalf("expected no opportunity, got %+v", opp)
	}
}

func TestDetectSkipsEmptySide(t *testing.T) {
	store := book.New(50)
	store.ApplySnapshot("yes", nil, []domain.OrderLevel{lvl("0.45", "100")}, 1, time.Now())
	// no-side book stays empty.

	d := NewPairDetector(store, decimal.RequireFromString("10"), testLogger())
	pair := domain.MarketPair{MarketID: "m1", YesTokenID: "yes", NoTokenID: "no"}
	d.RegisterPair(pair)

	opp, err := d.Detect(pair)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opp != nil {
		t.Fatalf("expected nil opportunity for empty side, got %+v", opp)
	}
}
