package executor

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/crypto"
	"github.com/polyarb/engine/internal/domain"
	"github.com/polyarb/engine/internal/platform/polymarket"
)

// ClobSubmitter implements OrderSubmitter against the live Polymarket
// CLOB: it signs each leg with the wallet's EIP-712 signer, posts it
// through the CLOB REST client, then polls GetOrder until the order
// leaves the open/pending states. Grounded on the CLOB client's
// PostOrder/GetOrder pair and the relayer's gasless order shape.
type ClobSubmitter struct {
	client   *polymarket.ClobClient
	signer   *crypto.Signer
	pollEvery time.Duration
}

// NewClobSubmitter wires a signer and CLOB client into an OrderSubmitter.
func NewClobSubmitter(client *polymarket.ClobClient, signer *crypto.Signer) *ClobSubmitter {
	return &ClobSubmitter{client: client, signer: signer, pollEvery: 500 * time.Millisecond}
}

// SubmitOrder signs and posts one leg, returning the CLOB order ID
// (used as the tx handle for WaitForReceipt).
func (s *ClobSubmitter) SubmitOrder(ctx context.Context, leg LegOrder) (string, error) {
	priceTicks := leg.Price.Mul(decimal.NewFromInt(1_000_000)).Round(0).IntPart()
	sizeUnits := leg.Quantity.Mul(decimal.NewFromInt(1_000_000)).Round(0).IntPart()

	side := domain.OrderSideBuy
	notionalUnits := leg.Price.Mul(leg.Quantity).Mul(decimal.NewFromInt(1_000_000)).Round(0).IntPart()
	makerAmount := big.NewInt(notionalUnits)
	takerAmount := big.NewInt(sizeUnits)

	salt, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return "", fmt.Errorf("clob_submitter: generate salt: %w", err)
	}

	payload := crypto.OrderPayload{
		Salt:        salt.String(),
		Maker:       s.signer.Address().Hex(),
		Signer:      s.signer.Address().Hex(),
		Taker:       "0x0000000000000000000000000000000000000000",
		TokenID:     leg.TokenID,
		MakerAmount: makerAmount.String(),
		TakerAmount: takerAmount.String(),
		Expiration:  "0",
		Nonce:       fmt.Sprintf("%d", leg.Nonce),
		FeeRateBps:  "0",
		Side:        0,
	}
	sig, err := s.signer.SignOrder(payload)
	if err != nil {
		return "", fmt.Errorf("clob_submitter: sign leg %s: %w", leg.TokenID, err)
	}

	order := domain.Order{
		TokenID:     leg.TokenID,
		Wallet:      s.signer.Address().Hex(),
		Side:        side,
		Type:        domain.OrderTypeFOK,
		PriceTicks:  priceTicks,
		SizeUnits:   sizeUnits,
		MakerAmount: makerAmount,
		TakerAmount: takerAmount,
		Signature:   sig,
		Strategy:    leg.TraceID,
	}

	result, err := s.client.PostOrder(ctx, order)
	if err != nil {
		return "", fmt.Errorf("clob_submitter: post leg %s: %w", leg.TokenID, err)
	}
	if !result.Success {
		return "", fmt.Errorf("clob_submitter: leg %s rejected: %s", leg.TokenID, result.Message)
	}
	return result.OrderID, nil
}

// WaitForReceipt polls GetOrder until the order settles, matches, or
// is cancelled/failed.
func (s *ClobSubmitter) WaitForReceipt(ctx context.Context, orderID string) (SubmissionReceipt, error) {
	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	for {
		order, err := s.client.GetOrder(ctx, orderID)
		if err != nil {
			return SubmissionReceipt{}, fmt.Errorf("clob_submitter: get order %s: %w", orderID, err)
		}
		switch order.Status {
		case domain.OrderStatusMatched:
			return SubmissionReceipt{
				TxHash:      orderID,
				FilledQty:   decimal.NewFromFloat(order.FilledSize),
				FilledPrice: decimal.NewFromFloat(order.Price()),
			}, nil
		case domain.OrderStatusCancelled, domain.OrderStatusFailed:
			return SubmissionReceipt{}, fmt.Errorf("clob_submitter: order %s ended in status %s", orderID, order.Status)
		}

		select {
		case <-ctx.Done():
			return SubmissionReceipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
