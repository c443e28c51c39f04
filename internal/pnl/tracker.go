// Package pnl implements the PnL tracker: fills grouped by trace id
// into atomic YES+NO pairs, realized via the qty-minus-cost identity,
// plus rolling cumulative counters and drawdown. Adapted from the
// revenue/cost accumulation shape of a realized-PnL computation over
// arbitrary buy/sell legs, narrowed to the atomic-pair settlement
// identity this engine's strategy actually trades.
package pnl

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/domain"
)

// PairResult is the realized accounting for one completed YES+NO
// fill pair.
type PairResult struct {
	TraceID     string
	Qty         decimal.Decimal
	Cost        decimal.Decimal
	RealizedPnL decimal.Decimal
	Simulated   bool
}

// Tracker accumulates fills by trace id and, once both legs of a pair
// arrive, computes realized PnL and updates rolling totals.
type Tracker struct {
	mu sync.Mutex

	pending map[string][]domain.Fill

	cumulativeExpectedEdge decimal.Decimal
	cumulativeSimulatedPnL decimal.Decimal
	cumulativeRealizedPnL  decimal.Decimal
	peakCumulativeRealized decimal.Decimal
	maxDrawdown            decimal.Decimal
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{pending: make(map[string][]domain.Fill)}
}

// RecordExpectedEdge adds a detected opportunity's expected profit to
// the expected-edge running total, for expected-vs-actual comparison.
func (t *Tracker) RecordExpectedEdge(expected decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cumulativeExpectedEdge = t.cumulativeExpectedEdge.Add(expected)
}

// RecordFill appends a fill to its trace id's pending group. Once two
// fills (one per leg) have accumulated for a trace id, it computes and
// returns the pair's realized result; otherwise it returns nil.
func (t *Tracker) RecordFill(f domain.Fill) *PairResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending[f.TraceID] = append(t.pending[f.TraceID], f)
	fills := t.pending[f.TraceID]
	if len(fills) < 2 {
		return nil
	}
	delete(t.pending, f.TraceID)

	qty := fills[0].Quantity
	if fills[1].Quantity.LessThan(qty) {
		qty = fills[1].Quantity
	}

	cost := decimal.Zero
	simulated := false
	for _, fl := range fills {
		notional := fl.PriceVWAP.Mul(fl.Quantity)
		slippageCost := notional.Mul(fl.SlippageBps).Mul(decimal.NewFromFloat(1e-4))
		cost = cost.Add(notional).Add(fl.FeesPaid).Add(slippageCost)
		if fl.IsSimulated {
			simulated = true
		}
	}

	// Settlement identity: 1 YES + 1 NO resolves to exactly qty USDC
	// regardless of outcome, so realized_pnl = qty - cost. This is a
	// pre-resolution proxy; final PnL is reconciled at a settlement
	// event, tracked separately.
	realized := qty.Sub(cost)

	if simulated {
		t.cumulativeSimulatedPnL = t.cumulativeSimulatedPnL.Add(realized)
	} else {
		t.cumulativeRealizedPnL = t.cumulativeRealizedPnL.Add(realized)
		if t.cumulativeRealizedPnL.GreaterThan(t.peakCumulativeRealized) {
			t.peakCumulativeRealized = t.cumulativeRealizedPnL
		}
		drawdown := t.peakCumulativeRealized.Sub(t.cumulativeRealizedPnL)
		if drawdown.GreaterThan(t.maxDrawdown) {
			t.maxDrawdown = drawdown
		}
	}

	return &PairResult{
		TraceID:     f.TraceID,
		Qty:         qty,
		Cost:        cost,
		RealizedPnL: realized,
		Simulated:   simulated,
	}
}

// Totals is a point-in-time read of the tracker's rolling counters.
type Totals struct {
	CumulativeExpectedEdge decimal.Decimal
	CumulativeSimulatedPnL decimal.Decimal
	CumulativeRealizedPnL  decimal.Decimal
	MaxDrawdown            decimal.Decimal
}

// Snapshot returns the current rolling totals.
func (t *Tracker) Snapshot() Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Totals{
		CumulativeExpectedEdge: t.cumulativeExpectedEdge,
		CumulativeSimulatedPnL: t.cumulativeSimulatedPnL,
		CumulativeRealizedPnL:  t.cumulativeRealizedPnL,
		MaxDrawdown:            t.maxDrawdown,
	}
}

// RealizedDailyPnLUSDC implements risk.DailyPnLSource. It returns the
// cumulative realized PnL since the Tracker was created; the total is
// not reset at a day boundary.
func (t *Tracker) RealizedDailyPnLUSDC() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cumulativeRealizedPnL
}
