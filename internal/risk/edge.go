// Package risk implements the edge calculator and risk manager that
// gate every detected opportunity before it is allowed to become a
// Signal, plus the anomaly guard that feeds the risk manager's
// manipulation/volatility checks.
package risk

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/domain"
)

// GasOracle converts the current gas price into a USDC cost estimate
// for a two-leg submission. Grounded on the chain-ops gas-price cache
// plus a MATIC→USDC price feed.
type GasOracle interface {
	EstimateGasCostUSDC() (decimal.Decimal, error)
}

// EdgeConfig holds the edge calculator's cost-model parameters.
type EdgeConfig struct {
	FeeRate             decimal.Decimal // taker fee, e.g. 0.0035
	SlippageBps         decimal.Decimal // e.g. 5
	LatencyBps          decimal.Decimal
	LatencyBufferMax    decimal.Decimal
	MinProfitThresholdPct decimal.Decimal
	MinProfitThresholdAbs decimal.Decimal
	MaxGasCostUSDC        decimal.Decimal
}

// DefaultEdgeConfig mirrors the source defaults: 0.35% taker fee, 5bps
// slippage buffer.
func DefaultEdgeConfig() EdgeConfig {
	return EdgeConfig{
		FeeRate:               decimal.RequireFromString("0.0035"),
		SlippageBps:           decimal.RequireFromString("5"),
		LatencyBps:            decimal.RequireFromString("2"),
		LatencyBufferMax:      decimal.RequireFromString("1"),
		MinProfitThresholdPct: decimal.RequireFromString("0.001"),
		MinProfitThresholdAbs: decimal.RequireFromString("0.01"),
		MaxGasCostUSDC:        decimal.RequireFromString("2.0"),
	}
}

// EdgeCalculator transforms a raw ArbitrageOpportunity into a costed
// EdgeBreakdown and an ACCEPT/REJECT decision.
type EdgeCalculator struct {
	cfg   EdgeConfig
	gas   GasOracle
	log   *slog.Logger
}

// NewEdgeCalculator creates an EdgeCalculator. gas may be nil, in
// which case GasEst is always zero (useful for dry-run-only setups).
func NewEdgeCalculator(cfg EdgeConfig, gas GasOracle, logger *slog.Logger) *EdgeCalculator {
	return &EdgeCalculator{cfg: cfg, gas: gas, log: logger.With(slog.String("component", "edge_calculator"))}
}

// Evaluate computes the full EdgeBreakdown for an opportunity at the
// quantity it was detected with.
func (e *EdgeCalculator) Evaluate(opp domain.ArbitrageOpportunity) domain.EdgeBreakdown {
	qty := opp.FilledQty
	grossEdge := opp.ExpectedProfitTotal

	notional := opp.YesVWAP.Mul(qty).Add(opp.NoVWAP.Mul(qty))
	feesEst := notional.Mul(e.cfg.FeeRate)

	slippageEst := qty.Mul(opp.YesVWAP.Add(opp.NoVWAP)).
		Mul(e.cfg.SlippageBps).
		Mul(decimal.NewFromFloat(1e-4))

	var gasEst decimal.Decimal
	if e.gas != nil {
		est, err := e.gas.EstimateGasCostUSDC()
		if err != nil {
			e.log.Warn("gas estimate failed, treating as zero", slog.String("error", err.Error()))
		} else {
			gasEst = est
		}
	}

	latencyBuffer := qty.Mul(e.cfg.LatencyBps).Mul(decimal.NewFromFloat(1e-4))
	if latencyBuffer.GreaterThan(e.cfg.LatencyBufferMax) {
		latencyBuffer = e.cfg.LatencyBufferMax
	}

	netEdge := grossEdge.Sub(feesEst).Sub(slippageEst).Sub(gasEst).Sub(latencyBuffer)

	minThreshold := qty.Mul(e.cfg.MinProfitThresholdPct)
	if e.cfg.MinProfitThresholdAbs.GreaterThan(minThreshold) {
		minThreshold = e.cfg.MinProfitThresholdAbs
	}

	eb := domain.EdgeBreakdown{
		GrossEdge:     grossEdge,
		FeesEst:       feesEst,
		SlippageEst:   slippageEst,
		GasEst:        gasEst,
		LatencyBuffer: latencyBuffer,
		NetEdge:       netEdge,
		MinThreshold:  minThreshold,
	}

	switch {
	case e.cfg.MaxGasCostUSDC.IsPositive() && gasEst.GreaterThan(e.cfg.MaxGasCostUSDC):
		eb.Decision = domain.EdgeDecisionReject
		eb.RejectReason = domain.ReasonGasTooHigh
	case netEdge.IsNegative():
		eb.Decision = domain.EdgeDecisionReject
		eb.RejectReason = domain.ReasonNegativeNetEdge
	case latencyBuffer.GreaterThanOrEqual(grossEdge):
		eb.Decision = domain.EdgeDecisionReject
		eb.RejectReason = domain.ReasonLatencyBufferDominates
	case slippageEst.GreaterThan(grossEdge.Sub(feesEst)):
		eb.Decision = domain.EdgeDecisionReject
		eb.RejectReason = domain.ReasonSlippageTooHigh
	case netEdge.LessThan(minThreshold):
		eb.Decision = domain.EdgeDecisionReject
		eb.RejectReason = domain.ReasonProfitTooLow
	default:
		eb.Decision = domain.EdgeDecisionAccept
	}

	return eb
}
