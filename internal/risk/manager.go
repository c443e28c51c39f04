package risk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/domain"
)

// PositionTracker answers the risk manager's position-exposure query
// for a given market pair.
type PositionTracker interface {
	CurrentExposure(marketID string) decimal.Decimal
}

// BalanceSource answers the risk manager's funding query.
type BalanceSource interface {
	AvailableBalanceUSDC() decimal.Decimal
}

// DailyPnLSource answers the daily-loss-limit query.
type DailyPnLSource interface {
	RealizedDailyPnLUSDC() decimal.Decimal
}

// Tripper halts live submissions system-wide. Satisfied by
// *breaker.Breaker without an import cycle.
type Tripper interface {
	Trip(reason string)
}

// ManagerConfig holds the risk manager's gating thresholds.
type ManagerConfig struct {
	MaxPositionSize     decimal.Decimal
	MaxDailyLoss        decimal.Decimal
	IdempotencyWindow   time.Duration
}

// DefaultManagerConfig returns conservative defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxPositionSize:   decimal.RequireFromString("1000"),
		MaxDailyLoss:      decimal.RequireFromString("100"),
		IdempotencyWindow: 60 * time.Second,
	}
}

// Manager implements the pre-trade check cascade: balance, position
// limit, gas cost (re-checked from the edge breakdown), edge decision,
// daily loss limit, then the anomaly guard. Checks short-circuit on
// first failure, in a fixed order.
type Manager struct {
	cfg     ManagerConfig
	balance BalanceSource
	pos     PositionTracker
	pnl     DailyPnLSource
	guard   *AnomalyGuard
	trip    Tripper
	log     *slog.Logger

	mu        sync.Mutex
	suppressed map[string]time.Time // marketID -> suppressed-until (partial fill reconciliation)
}

// NewManager creates a risk Manager. trip may be nil, in which case a
// severe anomaly still rejects the opportunity but does not halt the
// system.
func NewManager(cfg ManagerConfig, balance BalanceSource, pos PositionTracker, pnl DailyPnLSource, guard *AnomalyGuard, trip Tripper, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:        cfg,
		balance:    balance,
		pos:        pos,
		pnl:        pnl,
		guard:      guard,
		trip:       trip,
		log:        logger.With(slog.String("component", "risk_manager")),
		suppressed: make(map[string]time.Time),
	}
}

// SuppressPair blocks new signals for a market until cleared, used
// after a partial-fill terminal state until an operator reconciles
// the resulting one-legged position.
func (m *Manager) SuppressPair(marketID string, until time.Time) {
	m.mu.Lock()
	m.suppressed[marketID] = until
	m.mu.Unlock()
}

// ClearSuppression removes a pair's suppression (operator action).
func (m *Manager) ClearSuppression(marketID string) {
	m.mu.Lock()
	delete(m.suppressed, marketID)
	m.mu.Unlock()
}

func (m *Manager) isSuppressed(marketID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.suppressed[marketID]
	if !ok {
		return false
	}
	if time.Now().UTC().After(until) {
		delete(m.suppressed, marketID)
		return false
	}
	return true
}

// Evaluate runs the risk cascade for an opportunity already costed by
// the edge calculator. It returns a ready-to-execute Signal on
// success, or a zero Signal plus the blocking RejectReason.
func (m *Manager) Evaluate(opp domain.ArbitrageOpportunity, edge domain.EdgeBreakdown) (domain.Signal, domain.RejectReason) {
	qty := opp.FilledQty

	if m.isSuppressed(opp.Pair.MarketID) {
		return domain.Signal{}, domain.ReasonResolutionUncertain
	}

	// 1. Balance check: both legs must be fundable plus gas.
	maxLegPrice := opp.YesVWAP
	if opp.NoVWAP.GreaterThan(maxLegPrice) {
		maxLegPrice = opp.NoVWAP
	}
	required := decimal.NewFromInt(2).Mul(qty).Mul(maxLegPrice).Add(edge.GasEst)
	if m.balance != nil && m.balance.AvailableBalanceUSDC().LessThan(required) {
		return domain.Signal{}, domain.ReasonInsufficientBalance
	}

	// 2. Position limit.
	if m.pos != nil {
		exposure := m.pos.CurrentExposure(opp.Pair.MarketID)
		if exposure.Add(qty).GreaterThan(m.cfg.MaxPositionSize) {
			return domain.Signal{}, domain.ReasonPositionLimit
		}
	}

	// 3. Gas cost re-check, explicit even though edge.Decision already
	// folds this in.
	if edge.RejectReason == domain.ReasonGasTooHigh {
		return domain.Signal{}, domain.ReasonGasTooHigh
	}

	// 4. Edge decision.
	if edge.Decision != domain.EdgeDecisionAccept {
		reason := edge.RejectReason
		if reason == "" {
			reason = domain.ReasonProfitTooLow
		}
		return domain.Signal{}, reason
	}

	// 5. Daily loss limit: projected worst case is the full notional at risk.
	if m.pnl != nil {
		projectedWorstCase := qty.Mul(opp.YesVWAP.Add(opp.NoVWAP))
		if m.pnl.RealizedDailyPnLUSDC().Sub(projectedWorstCase).LessThan(m.cfg.MaxDailyLoss.Neg()) {
			return domain.Signal{}, domain.ReasonDailyLossLimit
		}
	}

	// 6. Anomaly guard.
	admittedQty := qty
	if m.guard != nil {
		sev, tags := m.guard.Check(opp.Pair.MarketID)
		if sev >= AnomalyTripSeverity {
			if m.trip != nil {
				m.trip.Trip("anomaly")
			}
			return domain.Signal{}, domain.ReasonManipulationRisk
		}
		if sev >= AnomalyDegradeSeverity {
			admittedQty = admittedQty.Div(decimal.NewFromInt(2)).Round(6)
			edge.RiskTags = append(edge.RiskTags, tags...)
		}
	}

	sig := domain.Signal{
		Opportunity:    opp,
		Edge:           edge,
		IdempotencyKey: idempotencyKey(opp, admittedQty, m.cfg.IdempotencyWindow),
		TraceID:        opp.TraceID,
		StrategyTag:    "yes_no_arbitrage",
		AdmittedQty:    admittedQty,
	}
	return sig, ""
}

// idempotencyKey hashes (pair, rounded qty, detection bucket time)
// into a stable fingerprint.
func idempotencyKey(opp domain.ArbitrageOpportunity, qty decimal.Decimal, window time.Duration) string {
	bucket := opp.DetectedAt.Unix()
	if window > 0 {
		bucket = bucket - (bucket % int64(window.Seconds()))
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s:%s:%d", opp.Pair.MarketID, qty.Round(4).String(), bucket)
	return hex.EncodeToString(h.Sum(nil))
}
