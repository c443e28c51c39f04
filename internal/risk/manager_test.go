package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/domain"
)

type fixedBalance struct{ v decimal.Decimal }

func (f fixedBalance) AvailableBalanceUSDC() decimal.Decimal { return f.v }

type fixedPosition struct{ v decimal.Decimal }

func (f fixedPosition) CurrentExposure(string) decimal.Decimal { return f.v }

type fixedPnL struct{ v decimal.Decimal }

func (f fixedPnL) RealizedDailyPnLUSDC() decimal.Decimal { return f.v }

func acceptedEdge(opp domain.ArbitrageOpportunity) domain.EdgeBreakdown {
	calc := NewEdgeCalculator(DefaultEdgeConfig(), nil, testLogger())
	return calc.Evaluate(opp)
}

func TestManagerAcceptsFundedTrade(t *testing.T) {
	opp := sampleOpp()
	edge := acceptedEdge(opp)
	m := NewManager(DefaultManagerConfig(), fixedBalance{decimal.RequireFromString("1000")}, fixedPosition{decimal.Zero}, fixedPnL{decimal.Zero}, nil, nil, testLogger())

	sig, reason := m.Evaluate(opp, edge)
	if reason != "" {
		t.Fatalf("expected accept, got reject reason %s", reason)
	}
	if sig.IdempotencyKey == "" {
		t.Fatal("expected a non-empty idempotency key")
	}
}

func TestManagerRejectsInsufficientBalance(t *testing.T) {
	opp := sampleOpp()
	edge := acceptedEdge(opp)
	m := NewManager(DefaultManagerConfig(), fixedBalance{decimal.RequireFromString("0.01")}, fixedPosition{decimal.Zero}, fixedPnL{decimal.Zero}, nil, nil, testLogger())

	_, reason := m.Evaluate(opp, edge)
	if reason != domain.ReasonInsufficientBalance {
		t.Fatalf("expected INSUFFICIENT_BALANCE, got %s", reason)
	}
}

func TestManagerRejectsPositionLimit(t *testing.T) {
	opp := sampleOpp()
	edge := acceptedEdge(opp)
	cfg := DefaultManagerConfig()
	cfg.MaxPositionSize = decimal.RequireFromString("1")
	m := NewManager(cfg, fixedBalance{decimal.RequireFromString("1000")}, fixedPosition{decimal.RequireFromString("5")}, fixedPnL{decimal.Zero}, nil, nil, testLogger())

	_, reason := m.Evaluate(opp, edge)
	if reason != domain.ReasonPositionLimit {
		t.Fatalf("expected POSITION_LIMIT, got %s", reason)
	}
}

func TestManagerRejectsDailyLossLimit(t *testing.T) {
	opp := sampleOpp()
	edge := acceptedEdge(opp)
	cfg := DefaultManagerConfig()
	cfg.MaxDailyLoss = decimal.RequireFromString("0.001")
	m := NewManager(cfg, fixedBalance{decimal.RequireFromString("1000")}, fixedPosition{decimal.Zero}, fixedPnL{decimal.RequireFromString("-50")}, nil, nil, testLogger())

	_, reason := m.Evaluate(opp, edge)
	if reason != domain.ReasonDailyLossLimit {
		t.Fatalf("expected DAILY_LOSS_LIMIT, got %s", reason)
	}
}

func TestManagerSuppressedPairRejected(t *testing.T) {
	opp := sampleOpp()
	edge := acceptedEdge(opp)
	m := NewManager(DefaultManagerConfig(), fixedBalance{decimal.RequireFromString("1000")}, fixedPosition{decimal.Zero}, fixedPnL{decimal.Zero}, nil, nil, testLogger())
	m.SuppressPair(opp.Pair.MarketID, time.Now().UTC().Add(time.Minute))

	_, reason := m.Evaluate(opp, edge)
	if reason == "" {
		t.Fatal("expected suppressed pair to be rejected")
	}
}

type recordingTripper struct{ reasons []string }

func (r *recordingTripper) Trip(reason string) { r.reasons = append(r.reasons, reason) }

func TestManagerSevereAnomalyTripsBreaker(t *testing.T) {
	opp := sampleOpp()
	edge := acceptedEdge(opp)
	guard := NewAnomalyGuard(DefaultAnomalyConfig())
	price := decimal.RequireFromString("0.5")
	depth := decimal.RequireFromString("1000")
	complement := decimal.RequireFromString("0.5")
	guard.Observe(opp.Pair.MarketID, price, depth, complement)
	guard.Observe(opp.Pair.MarketID, price.Mul(decimal.RequireFromString("3")), decimal.RequireFromString("1"), complement.Mul(decimal.RequireFromString("3")))

	trip := &recordingTripper{}
	m := NewManager(DefaultManagerConfig(), fixedBalance{decimal.RequireFromString("1000")}, fixedPosition{decimal.Zero}, fixedPnL{decimal.Zero}, guard, trip, testLogger())

	_, reason := m.Evaluate(opp, edge)
	if reason != domain.ReasonManipulationRisk {
		t.Fatalf("expected MANIPULATION_RISK, got %s", reason)
	}
	if len(trip.reasons) != 1 || trip.reasons[0] != "anomaly" {
		t.Fatalf("expected breaker tripped with reason anomaly, got %v", trip.reasons)
	}
}
