package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/breaker"
	"github.com/polyarb/engine/internal/chainops"
	"github.com/polyarb/engine/internal/domain"
	"github.com/polyarb/engine/internal/idempotency"
	"github.com/polyarb/engine/internal/retry"
)

// LegOrder is the chain-agnostic shape the order-submission capability
// consumes for one leg of a two-leg arbitrage trade.
type LegOrder struct {
	TokenID  string
	Side     domain.FillSide
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Nonce    uint64
	TraceID  string
}

// SubmissionReceipt is what the submission capability reports back for
// a confirmed leg.
type SubmissionReceipt struct {
	TxHash      string
	FilledQty   decimal.Decimal
	FilledPrice decimal.Decimal
	FeesPaid    decimal.Decimal
	SlippageBps decimal.Decimal
}

// OrderSubmitter is the signing-and-submission capability the live
// executor drives. Implementations own wallet signing (internal/crypto)
// and on-chain/CLOB submission.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, leg LegOrder) (string, error)
	WaitForReceipt(ctx context.Context, txHash string) (SubmissionReceipt, error)
}

// LiveExecutor drives one Signal through the two-leg submission state
// machine:
//
//	NEW -> NONCE_ALLOCATED -> LEG1_SUBMITTED -> LEG1_CONFIRMED ->
//	NONCE2_ALLOCATED -> LEG2_SUBMITTED -> LEG2_CONFIRMED -> DONE
//
// with FAILED_RETRYABLE/FAILED_TERMINAL exits from any submission step
// and a PARTIAL exit when leg 1 confirms but leg 2 cannot be completed.
// Gated by the circuit breaker, the nonce manager, the retry policy,
// and the idempotency registry — any one of those rejecting the
// signal short-circuits the state machine before a single order is
// signed.
type LiveExecutor struct {
	submitter OrderSubmitter
	nonces    *chainops.NonceManager
	cb        *breaker.Breaker
	idem      *idempotency.Registry
	retryCfg  retry.Config
	log       *slog.Logger
}

// NewLiveExecutor wires the gating quartet and the submission
// capability into a LiveExecutor.
func NewLiveExecutor(
	submitter OrderSubmitter,
	nonces *chainops.NonceManager,
	cb *breaker.Breaker,
	idem *idempotency.Registry,
	retryCfg retry.Config,
	logger *slog.Logger,
) *LiveExecutor {
	return &LiveExecutor{
		submitter: submitter,
		nonces:    nonces,
		cb:        cb,
		idem:      idem,
		retryCfg:  retryCfg,
		log:       logger.With(slog.String("component", "live_executor")),
	}
}

// Execute runs sig through the full live state machine once. A
// duplicate submission under the same idempotency key short-circuits
// to the prior terminal result without touching the chain.
func (e *LiveExecutor) Execute(ctx context.Context, sig domain.Signal) (domain.TxResult, error) {
	log := e.log.With(slog.String("trace_id", sig.TraceID), slog.String("idempotency_key", sig.IdempotencyKey))

	rec, err := e.idem.Begin(sig.IdempotencyKey)
	if err != nil {
		if prior, ok := e.idem.Lookup(sig.IdempotencyKey); ok && prior.Result != nil {
			log.Info("duplicate submission suppressed, returning prior result")
			return *prior.Result, nil
		}
		return domain.TxResult{
			Signal:         sig,
			Status:         domain.TxStatusFailed,
			ErrorKind:      domain.ErrorKindDuplicateSuppress,
			IdempotencyKey: sig.IdempotencyKey,
		}, nil
	}
	_ = rec

	handle, err := e.cb.Admit()
	if err != nil {
		result := domain.TxResult{
			Signal:         sig,
			Status:         domain.TxStatusFailed,
			ErrorKind:      domain.ErrorKindCircuitOpen,
			IdempotencyKey: sig.IdempotencyKey,
		}
		_ = e.idem.Finalize(sig.IdempotencyKey, idempotency.StatusDoneFailure, &result)
		return result, nil
	}

	result, attempts, submitErr := e.run(ctx, sig, log)
	result.Attempt = attempts

	if submitErr == nil && result.Status == domain.TxStatusSuccess {
		handle.Success()
		_ = e.idem.Finalize(sig.IdempotencyKey, idempotency.StatusDoneSuccess, &result)
	} else {
		gasCost, _ := sig.Edge.GasEst.Float64()
		handle.Failure(gasCost)
		_ = e.idem.Finalize(sig.IdempotencyKey, idempotency.StatusDoneFailure, &result)
	}

	return result, nil
}

func (e *LiveExecutor) run(ctx context.Context, sig domain.Signal, log *slog.Logger) (domain.TxResult, int, error) {
	pair := sig.Opportunity.Pair
	qty := sig.AdmittedQty

	result := domain.TxResult{Signal: sig, IdempotencyKey: sig.IdempotencyKey}

	nonce1, err := e.nonces.Allocate()
	if err != nil {
		result.Status = domain.TxStatusFailed
		result.ErrorKind = domain.ErrorKindTerminal
		return result, 0, err
	}

	yesFill, attempts1, err := e.submitLeg(ctx, LegOrder{
		TokenID: pair.YesTokenID, Side: domain.FillSideBuy, Quantity: qty,
		Price: sig.Opportunity.YesVWAP, Nonce: nonce1, TraceID: sig.TraceID,
	})
	if err != nil {
		e.nonces.MarkFailed(nonce1)
		result.Status = domain.TxStatusFailed
		result.ErrorKind = classifyErrorKind(err)
		result.Nonces = []uint64{nonce1}
		log.Error("leg 1 submission failed", slog.String("error", err.Error()))
		return result, attempts1, err
	}
	_ = e.nonces.MarkConfirmed(nonce1)

	nonce2, err := e.nonces.Allocate()
	if err != nil {
		result.Status = domain.TxStatusPartial
		result.YesFill = yesFill
		result.ErrorKind = domain.ErrorKindTerminal
		result.Nonces = []uint64{nonce1}
		return result, attempts1, err
	}

	noFill, attempts2, err := e.submitLeg(ctx, LegOrder{
		TokenID: pair.NoTokenID, Side: domain.FillSideBuy, Quantity: qty,
		Price: sig.Opportunity.NoVWAP, Nonce: nonce2, TraceID: sig.TraceID,
	})
	result.Nonces = []uint64{nonce1, nonce2}
	if err != nil {
		e.nonces.MarkFailed(nonce2)
		// Leg 1 is already on-chain; leg 2 failing leaves a one-sided
		// position, not a clean failure.
		result.Status = domain.TxStatusPartial
		result.YesFill = yesFill
		result.ErrorKind = classifyErrorKind(err)
		log.Warn("leg 2 submission failed after leg 1 confirmed, one-sided position", slog.String("error", err.Error()))
		return result, attempts1 + attempts2, err
	}
	_ = e.nonces.MarkConfirmed(nonce2)

	result.Status = domain.TxStatusSuccess
	result.YesFill = yesFill
	result.NoFill = noFill
	return result, attempts1 + attempts2, nil
}

func (e *LiveExecutor) submitLeg(ctx context.Context, leg LegOrder) (*domain.Fill, int, error) {
	var receipt SubmissionReceipt
	var txHash string

	attempts, err := retry.Do(ctx, e.retryCfg, func(attempt int) error {
		var submitErr error
		txHash, submitErr = e.submitter.SubmitOrder(ctx, leg)
		if submitErr != nil {
			return submitErr
		}
		receipt, submitErr = e.submitter.WaitForReceipt(ctx, txHash)
		return submitErr
	})
	if err != nil {
		return nil, attempts, err
	}

	return &domain.Fill{
		TokenID:     leg.TokenID,
		Side:        leg.Side,
		Quantity:    receipt.FilledQty,
		PriceVWAP:   receipt.FilledPrice,
		FeesPaid:    receipt.FeesPaid,
		SlippageBps: receipt.SlippageBps,
		TxHash:      receipt.TxHash,
		Timestamp:   time.Now().UTC(),
		TraceID:     leg.TraceID,
	}, attempts, nil
}

func classifyErrorKind(err error) domain.ErrorKind {
	if err == retry.ErrExhausted {
		return domain.ErrorKindRetryableExhausted
	}
	if retry.Classify(err) == retry.NonRetryable {
		return domain.ErrorKindTerminal
	}
	return domain.ErrorKindRetryableExhausted
}
