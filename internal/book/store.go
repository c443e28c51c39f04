// Package book implements the per-token order-book store: bounded
// depth ladders, sequence-ordered mutation, and the VWAP walk used by
// the opportunity detector.
package book

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/domain"
)

// DefaultDepthCap is the default maximum number of levels retained per
// side when no explicit cap is configured.
const DefaultDepthCap = 50

// Store owns every token's Book. It is the sole place book mutation
// happens; the feed ingestor is its only writer, the opportunity
// detector its reader via Snapshot.
type Store struct {
	depthCap int

	mu     sync.RWMutex
	books  map[string]*domain.Book
	locks  map[string]*sync.RWMutex
	notify func(tokenID string)
}

// New creates an empty Store with the given per-side depth cap. A
// depthCap <= 0 falls back to DefaultDepthCap.
func New(depthCap int) *Store {
	if depthCap <= 0 {
		depthCap = DefaultDepthCap
	}
	return &Store{
		depthCap: depthCap,
		books:    make(map[string]*domain.Book),
		locks:    make(map[string]*sync.RWMutex),
	}
}

// OnUpdate registers a callback invoked after every successfully
// applied snapshot or delta, naming the token that changed. Used to
// trigger detection tasks.
func (s *Store) OnUpdate(fn func(tokenID string)) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

func (s *Store) lockFor(tokenID string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[tokenID]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[tokenID] = l
	}
	return l
}

func (s *Store) bookFor(tokenID string) *domain.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[tokenID]
	if !ok {
		b = &domain.Book{TokenID: tokenID}
		s.books[tokenID] = b
	}
	return b
}

// ApplySnapshot replaces a token's book wholesale. Used on initial
// subscribe and on reseed after a sequence gap. Levels are sorted and
// capped to the configured depth; a zero-size level is dropped.
func (s *Store) ApplySnapshot(tokenID string, bids, asks []domain.OrderLevel, seq uint64, ts time.Time) {
	lock := s.lockFor(tokenID)
	lock.Lock()
	defer lock.Unlock()

	b := s.bookFor(tokenID)
	b.Bids = sortCap(bids, true, s.depthCap)
	b.Asks = sortCap(asks, false, s.depthCap)
	b.LastUpdateSeq = seq
	b.LastUpdateTS = ts

	s.fireNotify(tokenID)
}

// DeltaUpdate is one side-tagged level change within a BOOK_DELTA
// message. A zero Size removes the level.
type DeltaUpdate struct {
	Side  domain.OrderSide
	Level domain.OrderLevel
}

// ApplyDelta merges a batch of side-tagged level updates sharing one
// sequence number into the existing book. Caller is responsible for
// sequence-gap/out-of-order checks (the feed ingestor does this before
// calling ApplyDelta); this method assumes seq is the correct next
// value for the token.
func (s *Store) ApplyDelta(tokenID string, updates []DeltaUpdate, seq uint64, ts time.Time) error {
	lock := s.lockFor(tokenID)
	lock.Lock()
	defer lock.Unlock()

	b := s.bookFor(tokenID)
	for _, u := range updates {
		if u.Side == domain.OrderSideBuy {
			b.Bids = upsertLevel(b.Bids, u.Level, true, s.depthCap)
		} else {
			b.Asks = upsertLevel(b.Asks, u.Level, false, s.depthCap)
		}
	}
	b.LastUpdateSeq = seq
	b.LastUpdateTS = ts

	if b.Crossed() {
		return domain.ErrInvariantViolation
	}

	s.fireNotify(tokenID)
	return nil
}

// ApplyLevelUpdate merges a single side-tagged level update (the shape
// the feed actually delivers: one price/size/side per message). A
// zero size removes the level.
func (s *Store) ApplyLevelUpdate(tokenID string, side domain.OrderSide, level domain.OrderLevel, seq uint64, ts time.Time) error {
	lock := s.lockFor(tokenID)
	lock.Lock()
	defer lock.Unlock()

	b := s.bookFor(tokenID)

	if side == domain.OrderSideBuy {
		b.Bids = upsertLevel(b.Bids, level, true, s.depthCap)
	} else {
		b.Asks = upsertLevel(b.Asks, level, false, s.depthCap)
	}
	b.LastUpdateSeq = seq
	b.LastUpdateTS = ts

	if b.Crossed() {
		return domain.ErrInvariantViolation
	}

	s.fireNotify(tokenID)
	return nil
}

func (s *Store) fireNotify(tokenID string) {
	s.mu.RLock()
	fn := s.notify
	s.mu.RUnlock()
	if fn != nil {
		fn(tokenID)
	}
}

// BestBid returns the top bid level for a token.
func (s *Store) BestBid(tokenID string) (domain.OrderLevel, bool) {
	lock := s.lockFor(tokenID)
	lock.RLock()
	defer lock.RUnlock()
	return s.bookFor(tokenID).BestBid()
}

// BestAsk returns the top ask level for a token.
func (s *Store) BestAsk(tokenID string) (domain.OrderLevel, bool) {
	lock := s.lockFor(tokenID)
	lock.RLock()
	defer lock.RUnlock()
	return s.bookFor(tokenID).BestAsk()
}

// Snapshot returns an immutable copy of a token's current book. The
// returned slices are copies; callers may not observe concurrent
// mutation, and mutating them has no effect on the store.
func (s *Store) Snapshot(tokenID string) domain.Snapshot {
	lock := s.lockFor(tokenID)
	lock.RLock()
	defer lock.RUnlock()

	b := s.bookFor(tokenID)
	return domain.Snapshot{
		TokenID:       tokenID,
		Bids:          append([]domain.OrderLevel(nil), b.Bids...),
		Asks:          append([]domain.OrderLevel(nil), b.Asks...),
		LastUpdateSeq: b.LastUpdateSeq,
		LastUpdateTS:  b.LastUpdateTS,
	}
}

// LastSeq returns the last applied sequence number for a token, or 0
// if the token has never been seen.
func (s *Store) LastSeq(tokenID string) uint64 {
	lock := s.lockFor(tokenID)
	lock.RLock()
	defer lock.RUnlock()
	return s.bookFor(tokenID).LastUpdateSeq
}

// WalkAsks performs a VWAP walk of the ask side for a USDC budget,
// per the walk algorithm: iterate ascending price; a level whose value
// meets or exceeds the remaining budget is partially consumed and the
// walk stops; otherwise the level is fully consumed and the walk
// continues. Returns ErrInsufficientLiquidity if the ladder exhausts
// before the budget is filled.
func (s *Store) WalkAsks(tokenID string, budget decimal.Decimal) (domain.WalkResult, error) {
	snap := s.Snapshot(tokenID)
	return Walk(snap.Asks, budget)
}

// WalkBids performs the symmetric VWAP walk over the bid side,
// descending price, for liquidation/unwind use cases.
func (s *Store) WalkBids(tokenID string, budget decimal.Decimal) (domain.WalkResult, error) {
	snap := s.Snapshot(tokenID)
	return Walk(snap.Bids, budget)
}

// Walk is the side-agnostic VWAP walk: levels must already be ordered
// best-first for the desired side.
func Walk(levels []domain.OrderLevel, budget decimal.Decimal) (domain.WalkResult, error) {
	remaining := budget
	qtyTotal := decimal.Zero
	usdcConsumed := decimal.Zero

	for _, lvl := range levels {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		value := lvl.Price.Mul(lvl.Size)
		if value.GreaterThanOrEqual(remaining) {
			qty := remaining.Div(lvl.Price)
			qtyTotal = qtyTotal.Add(qty)
			usdcConsumed = usdcConsumed.Add(remaining)
			remaining = decimal.Zero
			break
		}
		qtyTotal = qtyTotal.Add(lvl.Size)
		usdcConsumed = usdcConsumed.Add(value)
		remaining = remaining.Sub(value)
	}

	if qtyTotal.IsZero() {
		return domain.WalkResult{}, domain.ErrInsufficientLiquidity
	}

	vwap := usdcConsumed.Div(qtyTotal).Round(6)
	partial := remaining.GreaterThan(decimal.Zero)

	result := domain.WalkResult{
		FilledQty: qtyTotal.Round(6),
		VWAP:      vwap,
		Partial:   partial,
	}
	if partial {
		return result, domain.ErrInsufficientLiquidity
	}
	return result, nil
}

// sortCap sorts levels for the given side (descending=true for bids)
// and truncates to cap, dropping zero-size levels.
func sortCap(levels []domain.OrderLevel, descending bool, cap int) []domain.OrderLevel {
	out := make([]domain.OrderLevel, 0, len(levels))
	for _, l := range levels {
		if l.Size.IsPositive() {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	if len(out) > cap {
		out = out[:cap]
	}
	return out
}

// upsertLevel inserts, replaces, or removes (size==0) a single level
// while preserving sort order and the depth cap.
func upsertLevel(levels []domain.OrderLevel, level domain.OrderLevel, descending bool, cap int) []domain.OrderLevel {
	idx := -1
	for i, l := range levels {
		if l.Price.Equal(level.Price) {
			idx = i
			break
		}
	}
	if level.Size.IsZero() || level.Size.IsNegative() {
		if idx >= 0 {
			levels = append(levels[:idx], levels[idx+1:]...)
		}
		return levels
	}
	if idx >= 0 {
		levels[idx] = level
		return levels
	}
	levels = append(levels, level)
	return sortCap(levels, descending, cap)
}
