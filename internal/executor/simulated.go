package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/book"
	"github.com/polyarb/engine/internal/domain"
)

// SimulatedExecutor synthesizes fills by re-walking the live order book at
// execution time rather than submitting anything on-chain. Every Fill it
// produces has IsSimulated set and an empty TxHash, with fees and slippage
// costed the same way a real fill would be.
type SimulatedExecutor struct {
	store       *book.Store
	feeRate     decimal.Decimal
	slippageBps decimal.Decimal
	log         *slog.Logger
}

// NewSimulatedExecutor creates a SimulatedExecutor reading against store.
// feeRate is applied to each leg's VWAP notional (e.g. 0.0035 for
// Polymarket's 0.35% taker fee); slippageBps worsens the fill price on
// top of the VWAP the book currently quotes.
func NewSimulatedExecutor(store *book.Store, feeRate, slippageBps decimal.Decimal, logger *slog.Logger) *SimulatedExecutor {
	return &SimulatedExecutor{
		store:       store,
		feeRate:     feeRate,
		slippageBps: slippageBps,
		log:         logger.With(slog.String("component", "simulated_executor")),
	}
}

// slippageMultiplier worsens a buy price by slippageBps, e.g. 5bps ->
// 1.0005.
func (e *SimulatedExecutor) slippageMultiplier() decimal.Decimal {
	return decimal.NewFromInt(1).Add(e.slippageBps.Div(decimal.NewFromInt(10_000)))
}

// Execute re-walks both legs' ask ladders for the admitted quantity and
// returns a TxResult as if both legs filled at the freshly computed VWAP.
// A re-walk that can no longer fill the admitted quantity (the book moved
// between detection and execution) surfaces as a PARTIAL result using
// whatever quantity the book could still support.
func (e *SimulatedExecutor) Execute(ctx context.Context, sig domain.Signal) (domain.TxResult, error) {
	pair := sig.Opportunity.Pair
	qty := sig.AdmittedQty
	now := time.Now().UTC()

	// WalkAsks takes a USDC budget, not a share count; re-derive each
	// leg's budget from the admitted quantity priced at the VWAP the
	// opportunity was detected at.
	yesBudget := qty.Mul(sig.Opportunity.YesVWAP)
	noBudget := qty.Mul(sig.Opportunity.NoVWAP)

	yesAsks, yesErr := e.store.WalkAsks(pair.YesTokenID, yesBudget)
	noAsks, noErr := e.store.WalkAsks(pair.NoTokenID, noBudget)

	status := domain.TxStatusSuccess
	if yesErr != nil || noErr != nil || yesAsks.Partial || noAsks.Partial {
		status = domain.TxStatusPartial
	}
	if yesAsks.FilledQty.IsZero() && noAsks.FilledQty.IsZero() {
		status = domain.TxStatusFailed
	}

	filled := decimal.Min(yesAsks.FilledQty, noAsks.FilledQty)
	slip := e.slippageMultiplier()

	yesFill := &domain.Fill{
		TokenID:     pair.YesTokenID,
		Side:        domain.FillSideBuy,
		Quantity:    filled,
		PriceVWAP:   yesAsks.VWAP.Mul(slip),
		FeesPaid:    filled.Mul(yesAsks.VWAP).Mul(e.feeRate),
		SlippageBps: e.slippageBps,
		IsSimulated: true,
		Timestamp:   now,
		TraceID:     sig.TraceID,
	}
	noFill := &domain.Fill{
		TokenID:     pair.NoTokenID,
		Side:        domain.FillSideBuy,
		Quantity:    filled,
		PriceVWAP:   noAsks.VWAP.Mul(slip),
		FeesPaid:    filled.Mul(noAsks.VWAP).Mul(e.feeRate),
		SlippageBps: e.slippageBps,
		IsSimulated: true,
		Timestamp:   now,
		TraceID:     sig.TraceID,
	}

	e.log.Debug("simulated execution complete",
		slog.String("trace_id", sig.TraceID),
		slog.String("status", string(status)),
		slog.String("filled_qty", filled.String()),
	)

	return domain.TxResult{
		Signal:         sig,
		Status:         status,
		YesFill:        yesFill,
		NoFill:         noFill,
		Attempt:        1,
		IdempotencyKey: sig.IdempotencyKey,
	}, nil
}
