package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderLevel is a single price+size entry on one side of a CLOB ladder.
// Price is a decimal fraction of USDC per share in (0,1); Size is in shares.
// Both are fixed-decimal — binary floats are never used for price or size.
type OrderLevel struct {
	Price   decimal.Decimal
	Size    decimal.Decimal
	TokenID string
}

// Book is the per-token order book: bids sorted strictly descending by
// price, asks sorted strictly ascending. Ties are broken by insertion
// order (stable). Either side may be empty.
type Book struct {
	TokenID       string
	Bids          []OrderLevel
	Asks          []OrderLevel
	LastUpdateSeq uint64
	LastUpdateTS  time.Time
}

// BestBid returns the highest bid level, or a zero level and false if
// the bid side is empty.
func (b *Book) BestBid() (OrderLevel, bool) {
	if len(b.Bids) == 0 {
		return OrderLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask level, or a zero level and false if
// the ask side is empty.
func (b *Book) BestAsk() (OrderLevel, bool) {
	if len(b.Asks) == 0 {
		return OrderLevel{}, false
	}
	return b.Asks[0], true
}

// Crossed reports whether the book violates the bid<ask invariant. An
// empty side is never considered crossed.
func (b *Book) Crossed() bool {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return false
	}
	return !bid.Price.LessThan(ask.Price)
}

// Snapshot is an immutable view of a book handed to readers (the
// detection path). Callers must not mutate the returned slices.
type Snapshot struct {
	TokenID       string
	Bids          []OrderLevel
	Asks          []OrderLevel
	LastUpdateSeq uint64
	LastUpdateTS  time.Time
}

// WalkResult is the outcome of a VWAP walk over one side of a book.
type WalkResult struct {
	FilledQty decimal.Decimal
	VWAP      decimal.Decimal
	Partial   bool
}

// MarketPair correlates a binary market's two outcome tokens.
type MarketPair struct {
	MarketID  string
	YesTokenID string
	NoTokenID  string
	Question   string
	EndDate    time.Time
}

// Valid reports whether the pair satisfies the structural invariant:
// distinct token ids belonging to the same market.
func (p MarketPair) Valid() bool {
	return p.YesTokenID != "" && p.NoTokenID != "" && p.YesTokenID != p.NoTokenID
}
