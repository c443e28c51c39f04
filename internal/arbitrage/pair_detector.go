package arbitrage

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/book"
	"github.com/polyarb/engine/internal/domain"
)

// ProfitFloor is the pre-filter epsilon: an opportunity whose total
// expected profit does not clear this floor is not emitted at all.
var ProfitFloor = decimal.RequireFromString("0.000001")

// PairDetector runs the opportunity-detection algorithm over a set of
// registered MarketPairs, triggered by book-store change
// notifications on either leg's token. One detection task per pair
// (or shard of pairs) is the intended deployment shape; PairDetector
// itself is safe for concurrent Detect calls across distinct pairs.
type PairDetector struct {
	store      *book.Store
	tradeSize  decimal.Decimal
	log        *slog.Logger

	mu    sync.RWMutex
	pairs map[string]domain.MarketPair // keyed by yes or no token id
}

// NewPairDetector creates a detector that walks book snapshots for a
// USDC trade size split evenly across the two legs.
func NewPairDetector(store *book.Store, tradeSizeUSDC decimal.Decimal, logger *slog.Logger) *PairDetector {
	return &PairDetector{
		store:     store,
		tradeSize: tradeSizeUSDC,
		log:       logger.With(slog.String("component", "opportunity_detector")),
		pairs:     make(map[string]domain.MarketPair),
	}
}

// RegisterPair makes a MarketPair eligible for detection; both of its
// token ids route book updates to it.
func (d *PairDetector) RegisterPair(pair domain.MarketPair) {
	if !pair.Valid() {
		return
	}
	d.mu.Lock()
	d.pairs[pair.YesTokenID] = pair
	d.pairs[pair.NoTokenID] = pair
	d.mu.Unlock()
}

// PairForToken looks up the MarketPair a token belongs to.
func (d *PairDetector) PairForToken(tokenID string) (domain.MarketPair, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.pairs[tokenID]
	return p, ok
}

// OnTokenUpdate is the book.Store notification hook: given the token
// that just changed, resolve its pair and run detection.
func (d *PairDetector) OnTokenUpdate(tokenID string) (*domain.ArbitrageOpportunity, error) {
	pair, ok := d.PairForToken(tokenID)
	if !ok {
		return nil, nil
	}
	return d.Detect(pair)
}

// Sample reports the YES leg's top-of-book price and depth plus the
// correlation complement (1 - NO leg's top-of-book price), for the
// anomaly guard to observe on every book change regardless of whether
// a tradeable opportunity exists. ok is false if either side is
// currently empty.
func (d *PairDetector) Sample(pair domain.MarketPair) (price, depth, complement decimal.Decimal, ok bool) {
	yesAsk, yesOK := d.store.BestAsk(pair.YesTokenID)
	noAsk, noOK := d.store.BestAsk(pair.NoTokenID)
	if !yesOK || !noOK {
		return decimal.Zero, decimal.Zero, decimal.Zero, false
	}
	complement = decimal.NewFromInt(1).Sub(noAsk.Price)
	return yesAsk.Price, yesAsk.Size, complement, true
}

// Detect runs the VWAP-walk detection algorithm for one pair: walk
// both legs' ask ladders for half the configured trade size each,
// and emit an opportunity if 1 - (yes_vwap + no_vwap) clears the
// profit floor after accounting for the smaller of the two achieved
// quantities.
func (d *PairDetector) Detect(pair domain.MarketPair) (*domain.ArbitrageOpportunity, error) {
	budget := d.tradeSize.Div(decimal.NewFromInt(2))

	yesRes, yesErr := d.store.WalkAsks(pair.YesTokenID, budget)
	if yesErr != nil && yesErr != domain.ErrInsufficientLiquidity {
		return nil, nil // empty side: skip
	}
	noRes, noErr := d.store.WalkAsks(pair.NoTokenID, budget)
	if noErr != nil && noErr != domain.ErrInsufficientLiquidity {
		return nil, nil
	}
	if yesRes.FilledQty.IsZero() || noRes.FilledQty.IsZero() {
		return nil, nil
	}

	grossPerUnit := decimal.NewFromInt(1).Sub(yesRes.VWAP.Add(noRes.VWAP))
	if !grossPerUnit.IsPositive() {
		return nil, nil
	}

	filledQty := yesRes.FilledQty
	if noRes.FilledQty.LessThan(filledQty) {
		filledQty = noRes.FilledQty
	}
	filledQty = filledQty.Round(6)

	expectedTotal := grossPerUnit.Mul(filledQty)
	if expectedTotal.LessThan(ProfitFloor) {
		return nil, nil
	}

	opp := &domain.ArbitrageOpportunity{
		Pair:                  pair,
		YesVWAP:               yesRes.VWAP,
		NoVWAP:                noRes.VWAP,
		TradeSizeUSDC:         d.tradeSize,
		ExpectedProfitPerUnit: grossPerUnit,
		ExpectedProfitTotal:   expectedTotal,
		FilledQty:             filledQty,
		DetectedAt:            time.Now().UTC(),
		TraceID:               uuid.New().String(),
	}
	return opp, nil
}
