package pnl

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/domain"
)

func fill(traceID string, qty, price, fees decimal.Decimal, simulated bool) domain.Fill {
	return domain.Fill{
		TraceID:     traceID,
		Quantity:    qty,
		PriceVWAP:   price,
		FeesPaid:    fees,
		SlippageBps: decimal.Zero,
		IsSimulated: simulated,
		Timestamp:   time.Now().UTC(),
	}
}

// realized_pnl for a completed pair equals qty - cost.
func TestRecordFillComputesRealizedPnLIdentity(t *testing.T) {
	tr := NewTracker()

	qty := decimal.NewFromInt(10)
	yes := fill("trace-1", qty, decimal.RequireFromString("0.45"), decimal.RequireFromString("0.05"), false)
	if r := tr.RecordFill(yes); r != nil {
		t.Fatal("expected nil after first leg")
	}

	no := fill("trace-1", qty, decimal.RequireFromString("0.50"), decimal.RequireFromString("0.05"), false)
	result := tr.RecordFill(no)
	if result == nil {
		t.Fatal("expected pair result after second leg")
	}

	// cost = (0.45*10 + 0.05) + (0.50*10 + 0.05) = 4.55 + 5.05 = 9.60
	wantCost := decimal.RequireFromString("9.6")
	if !result.Cost.Equal(wantCost) {
		t.Fatalf("expected cost %s, got %s", wantCost, result.Cost)
	}
	wantPnL := qty.Sub(wantCost)
	if !result.RealizedPnL.Equal(wantPnL) {
		t.Fatalf("expected realized pnl %s, got %s", wantPnL, result.RealizedPnL)
	}
	if !result.RealizedPnL.Equal(qty.Sub(result.Cost)) {
		t.Fatal("realized pnl must equal qty - cost exactly")
	}
}

func TestRecordFillSeparatesSimulatedFromRealized(t *testing.T) {
	tr := NewTracker()
	qty := decimal.NewFromInt(5)
	tr.RecordFill(fill("sim-trace", qty, decimal.RequireFromString("0.40"), decimal.Zero, true))
	tr.RecordFill(fill("sim-trace", qty, decimal.RequireFromString("0.45"), decimal.Zero, true))

	totals := tr.Snapshot()
	if totals.CumulativeRealizedPnL.Sign() != 0 {
		t.Fatalf("expected zero realized pnl from a simulated pair, got %s", totals.CumulativeRealizedPnL)
	}
	if totals.CumulativeSimulatedPnL.Sign() == 0 {
		t.Fatal("expected non-zero simulated pnl")
	}
}

func TestMaxDrawdownTracksPeakToTrough(t *testing.T) {
	tr := NewTracker()

	// First pair: profitable.
	tr.RecordFill(fill("t1", decimal.NewFromInt(10), decimal.RequireFromString("0.40"), decimal.Zero, false))
	tr.RecordFill(fill("t1", decimal.NewFromInt(10), decimal.RequireFromString("0.45"), decimal.Zero, false))

	// Second pair: a loss that pulls cumulative realized PnL down from its peak.
	tr.RecordFill(fill("t2", decimal.NewFromInt(10), decimal.RequireFromString("0.60"), decimal.Zero, false))
	tr.RecordFill(fill("t2", decimal.NewFromInt(10), decimal.RequireFromString("0.60"), decimal.Zero, false))

	totals := tr.Snapshot()
	if totals.MaxDrawdown.Sign() <= 0 {
		t.Fatalf("expected positive drawdown after a loss following a gain, got %s", totals.MaxDrawdown)
	}
}

func TestRealizedDailyPnLUSDCSatisfiesRiskInterface(t *testing.T) {
	tr := NewTracker()
	tr.RecordFill(fill("t1", decimal.NewFromInt(10), decimal.RequireFromString("0.40"), decimal.Zero, false))
	tr.RecordFill(fill("t1", decimal.NewFromInt(10), decimal.RequireFromString("0.45"), decimal.Zero, false))

	if tr.RealizedDailyPnLUSDC().IsZero() {
		t.Fatal("expected non-zero realized daily pnl")
	}
}
