package risk

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleOpp() domain.ArbitrageOpportunity {
	return domain.ArbitrageOpportunity{
		Pair:                  domain.MarketPair{MarketID: "m1", YesTokenID: "y", NoTokenID: "n"},
		YesVWAP:               decimal.RequireFromString("0.45"),
		NoVWAP:                decimal.RequireFromString("0.50"),
		FilledQty:             decimal.RequireFromString("11.11"),
		ExpectedProfitPerUnit: decimal.RequireFromString("0.05"),
		ExpectedProfitTotal:   decimal.RequireFromString("0.5555"),
		DetectedAt:            time.Now().UTC(),
		TraceID:               "t1",
	}
}

// edge algebra holds exactly in decimal arithmetic.
func TestEdgeAlgebraExact(t *testing.T) {
	calc := NewEdgeCalculator(DefaultEdgeConfig(), nil, testLogger())
	eb := calc.Evaluate(sampleOpp())

	sum := eb.FeesEst.Add(eb.SlippageEst).Add(eb.GasEst).Add(eb.LatencyBuffer)
	want := eb.GrossEdge.Sub(sum)
	if !eb.NetEdge.Equal(want) {
		t.Fatalf("net edge %s != gross - costs %s", eb.NetEdge, want)
	}
}

// Scenario 1: clear accept under default costs.
func TestEdgeAcceptsCleanOpportunity(t *testing.T) {
	calc := NewEdgeCalculator(DefaultEdgeConfig(), nil, testLogger())
	eb := calc.Evaluate(sampleOpp())
	if eb.Decision != domain.EdgeDecisionAccept {
		t.Fatalf("expected ACCEPT, got %s (%s)", eb.Decision, eb.RejectReason)
	}
}

// Scenario 2: reject on fee domination with a high fee rate.
func TestEdgeRejectsOnFeeDomination(t *testing.T) {
	cfg := DefaultEdgeConfig()
	cfg.FeeRate = decimal.RequireFromString("0.03")
	calc := NewEdgeCalculator(cfg, nil, testLogger())

	opp := sampleOpp()
	opp.FilledQty = decimal.RequireFromString("0.5")
	opp.ExpectedProfitTotal = decimal.RequireFromString("0.025")

	eb := calc.Evaluate(opp)
	if eb.Decision != domain.EdgeDecisionReject {
		t.Fatalf("expected REJECT, got ACCEPT")
	}
	if eb.RejectReason != domain.ReasonProfitTooLow {
		t.Fatalf("expected PROFIT_TOO_LOW, got %s", eb.RejectReason)
	}
}

// every accepted opportunity has gross_edge > 0 and net_edge >= min_threshold.
func TestEdgeAcceptImpliesNoLossGate(t *testing.T) {
	calc := NewEdgeCalculator(DefaultEdgeConfig(), nil, testLogger())
	eb := calc.Evaluate(sampleOpp())
	if eb.Decision != domain.EdgeDecisionAccept {
		t.Skip("opportunity rejected, gate not applicable")
	}
	if !eb.GrossEdge.IsPositive() {
		t.Fatalf("accepted opportunity has non-positive gross edge: %s", eb.GrossEdge)
	}
	if eb.NetEdge.LessThan(eb.MinThreshold) {
		t.Fatalf("accepted opportunity has net edge %s below threshold %s", eb.NetEdge, eb.MinThreshold)
	}
}

func TestEdgeRejectsOnGasTooHigh(t *testing.T) {
	cfg := DefaultEdgeConfig()
	cfg.MaxGasCostUSDC = decimal.RequireFromString("0.01")
	calc := NewEdgeCalculator(cfg, constGasOracle{decimal.RequireFromString("5")}, testLogger())
	eb := calc.Evaluate(sampleOpp())
	if eb.RejectReason != domain.ReasonGasTooHigh {
		t.Fatalf("expected GAS_TOO_HIGH, got %s", eb.RejectReason)
	}
}

type constGasOracle struct{ v decimal.Decimal }

func (c constGasOracle) EstimateGasCostUSDC() (decimal.Decimal, error) { return c.v, nil }
