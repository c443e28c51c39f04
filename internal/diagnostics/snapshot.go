// Package diagnostics assembles an operator-facing snapshot of the
// engine's gating and accounting state: circuit breaker, nonce
// manager, idempotency registry, and PnL tracker. Grounded on the
// teacher pack's health-check surface, generalized from a single
// liveness bool into a structured multi-component snapshot.
package diagnostics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/breaker"
	"github.com/polyarb/engine/internal/chainops"
	"github.com/polyarb/engine/internal/domain"
	"github.com/polyarb/engine/internal/idempotency"
	"github.com/polyarb/engine/internal/pnl"
)

// Snapshot is the full point-in-time diagnostic read.
type Snapshot struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Circuit     domain.CircuitSnapshot `json:"circuit"`
	Nonce       domain.NonceSnapshot   `json:"nonce"`
	Idempotency IdempotencySnapshot    `json:"idempotency"`
	PnL         PnLSnapshot            `json:"pnl"`
}

// IdempotencySnapshot is the idempotency registry's counters.
type IdempotencySnapshot struct {
	HotTierSize int `json:"hot_tier_size"`
}

// PnLSnapshot is the PnL tracker's rolling totals.
type PnLSnapshot struct {
	CumulativeExpectedEdge decimal.Decimal `json:"cumulative_expected_edge"`
	CumulativeSimulatedPnL decimal.Decimal `json:"cumulative_simulated_pnl"`
	CumulativeRealizedPnL  decimal.Decimal `json:"cumulative_realized_pnl"`
	MaxDrawdown            decimal.Decimal `json:"max_drawdown"`
}

// Collector reads every component's current state on demand. It holds
// no state of its own besides the wired-in components, so each
// Collect reflects the exact moment it is called.
type Collector struct {
	circuit     *breaker.Breaker
	nonce       *chainops.NonceManager
	idempotency *idempotency.Registry
	pnl         *pnl.Tracker
}

// NewCollector wires the four component sources into a Collector. Any
// argument may be nil, in which case its section of Snapshot is left
// zero-valued.
func NewCollector(circuit *breaker.Breaker, nonce *chainops.NonceManager, idem *idempotency.Registry, tracker *pnl.Tracker) *Collector {
	return &Collector{circuit: circuit, nonce: nonce, idempotency: idem, pnl: tracker}
}

// Collect assembles the current Snapshot.
func (c *Collector) Collect() Snapshot {
	snap := Snapshot{GeneratedAt: time.Now().UTC()}
	if c.circuit != nil {
		snap.Circuit = c.circuit.Snapshot()
	}
	if c.nonce != nil {
		snap.Nonce = c.nonce.Snapshot()
	}
	if c.idempotency != nil {
		snap.Idempotency = IdempotencySnapshot{HotTierSize: c.idempotency.Size()}
	}
	if c.pnl != nil {
		t := c.pnl.Snapshot()
		snap.PnL = PnLSnapshot{
			CumulativeExpectedEdge: t.CumulativeExpectedEdge,
			CumulativeSimulatedPnL: t.CumulativeSimulatedPnL,
			CumulativeRealizedPnL:  t.CumulativeRealizedPnL,
			MaxDrawdown:            t.MaxDrawdown,
		}
	}
	return snap
}
