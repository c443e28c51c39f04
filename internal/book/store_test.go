package book

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/domain"
)

func lvl(price, size string) domain.OrderLevel {
	return domain.OrderLevel{Price: decimal.RequireFromString(price), Size: decimal.RequireFromString(size)}
}

func TestApplySnapshotOrdering(t *testing.T) {
	s := New(50)
	bids := []domain.OrderLevel{lvl("0.40", "10"), lvl("0.45", "5"), lvl("0.42", "3")}
	asks := []domain.OrderLevel{lvl("0.55", "10"), lvl("0.50", "5"), lvl("0.52", "3")}
	s.ApplySnapshot("tok1", bids, asks, 1, time.Now())

	snap := s.Snapshot("tok1")
	for i := 1; i < len(snap.Bids); i++ {
		if !snap.Bids[i-1].Price.GreaterThan(snap.Bids[i].Price) {
			t.Fatalf("bids not strictly descending at %d", i)
		}
	}
	for i := 1; i < len(snap.Asks); i++ {
		if !snap.Asks[i-1].Price.LessThan(snap.Asks[i].Price) {
			t.Fatalf("asks not strictly ascending at %d", i)
		}
	}
	bb, _ := s.BestBid("tok1")
	ba, _ := s.BestAsk("tok1")
	if !bb.Price.LessThan(ba.Price) {
		t.Fatalf("best bid %s not less than best ask %s", bb.Price, ba.Price)
	}
}

func TestApplySnapshotDropsZeroSize(t *testing.T) {
	s := New(50)
	asks := []domain.OrderLevel{lvl("0.50", "0"), lvl("0.52", "3")}
	s.ApplySnapshot("tok1", nil, asks, 1, time.Now())
	snap := s.Snapshot("tok1")
	if len(snap.Asks) != 1 {
		t.Fatalf("expected 1 ask level after drop, got %d", len(snap.Asks))
	}
}

func TestApplyLevelUpdateRemovesOnZeroSize(t *testing.T) {
	s := New(50)
	s.ApplySnapshot("tok1", nil, []domain.OrderLevel{lvl("0.50", "5")}, 1, time.Now())
	if err := s.ApplyLevelUpdate("tok1", domain.OrderSideSell, lvl("0.50", "0"), 2, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := s.Snapshot("tok1")
	if len(snap.Asks) != 0 {
		t.Fatalf("expected ask level removed, got %d", len(snap.Asks))
	}
}

func TestWalkExactSingleLevel(t *testing.T) {
	asks := []domain.OrderLevel{lvl("0.45", "100")}
	res, err := Walk(asks, decimal.RequireFromString("5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.VWAP.Equal(decimal.RequireFromString("0.45")) {
		t.Fatalf("expected vwap 0.45, got %s", res.VWAP)
	}
	wantQty := decimal.RequireFromString("5").Div(decimal.RequireFromString("0.45")).Round(6)
	if !res.FilledQty.Equal(wantQty) {
		t.Fatalf("expected qty %s, got %s", wantQty, res.FilledQty)
	}
}

// Crossing into a deeper level.
func TestWalkCrossesDeeperLevel(t *testing.T) {
	asks := []domain.OrderLevel{lvl("0.44", "1"), lvl("0.46", "100")}
	res, err := Walk(asks, decimal.RequireFromString("5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantVWAP := decimal.RequireFromString("0.45819")
	diff := res.VWAP.Sub(wantVWAP).Abs()
	if diff.GreaterThan(decimal.RequireFromString("0.0001")) {
		t.Fatalf("expected vwap close to %s, got %s", wantVWAP, res.VWAP)
	}
}

func TestWalkInsufficientLiquidity(t *testing.T) {
	asks := []domain.OrderLevel{lvl("0.50", "1")}
	_, err := Walk(asks, decimal.RequireFromString("10"))
	if err != domain.ErrInsufficientLiquidity {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestWalkVWAPAtLeastMinPriceConsumed(t *testing.T) {
	asks := []domain.OrderLevel{lvl("0.40", "1"), lvl("0.60", "1")}
	res, err := Walk(asks, decimal.RequireFromString("1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.VWAP.LessThan(decimal.RequireFromString("0.40")) {
		t.Fatalf("vwap %s below min consumed price", res.VWAP)
	}
}
