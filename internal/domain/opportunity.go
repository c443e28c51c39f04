package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ArbitrageOpportunity is produced by the detection path once per pair
// per qualifying book change. It is consumed exactly once by the edge
// calculator.
type ArbitrageOpportunity struct {
	Pair                  MarketPair
	YesVWAP               decimal.Decimal
	NoVWAP                decimal.Decimal
	TradeSizeUSDC         decimal.Decimal
	ExpectedProfitPerUnit decimal.Decimal
	ExpectedProfitTotal   decimal.Decimal
	FilledQty             decimal.Decimal
	DetectedAt            time.Time
	TraceID               string
}

// EdgeDecision is the outcome of the edge calculator's gating logic.
type EdgeDecision string

const (
	EdgeDecisionAccept EdgeDecision = "ACCEPT"
	EdgeDecisionReject EdgeDecision = "REJECT"
)

// RejectReason enumerates the edge calculator's and risk manager's
// exhaustive reject taxonomies.
type RejectReason string

const (
	ReasonProfitTooLow           RejectReason = "PROFIT_TOO_LOW"
	ReasonGasTooHigh             RejectReason = "GAS_TOO_HIGH"
	ReasonSlippageTooHigh        RejectReason = "SLIPPAGE_TOO_HIGH"
	ReasonLatencyBufferDominates RejectReason = "LATENCY_BUFFER_DOMINATES"
	ReasonNegativeNetEdge        RejectReason = "NEGATIVE_NET_EDGE"

	ReasonInsufficientBalance RejectReason = "INSUFFICIENT_BALANCE"
	ReasonPositionLimit       RejectReason = "POSITION_LIMIT"
	ReasonDailyLossLimit      RejectReason = "DAILY_LOSS_LIMIT"
	ReasonResolutionUncertain RejectReason = "RESOLUTION_UNCERTAIN"
	ReasonManipulationRisk    RejectReason = "MANIPULATION_RISK"
	ReasonAbnormalVolatility  RejectReason = "ABNORMAL_VOLATILITY"
)

// EdgeBreakdown is the fully-costed accounting of an opportunity.
// Invariant: NetEdge = GrossEdge - (FeesEst + SlippageEst + GasEst + LatencyBuffer).
type EdgeBreakdown struct {
	GrossEdge     decimal.Decimal
	FeesEst       decimal.Decimal
	SlippageEst   decimal.Decimal
	GasEst        decimal.Decimal
	LatencyBuffer decimal.Decimal
	NetEdge       decimal.Decimal
	MinThreshold  decimal.Decimal
	Decision      EdgeDecision
	RejectReason  RejectReason
	RiskTags      []string
}

// Signal is a validated opportunity ready for execution.
type Signal struct {
	Opportunity     ArbitrageOpportunity
	Edge            EdgeBreakdown
	IdempotencyKey  string
	TraceID         string
	StrategyTag     string
	AdmittedQty     decimal.Decimal
}
