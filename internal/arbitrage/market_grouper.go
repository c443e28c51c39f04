package arbitrage

import (
	"log/slog"
	"strings"
	"time"

	"github.com/polyarb/engine/internal/domain"
)

// RawMarket is the metadata shape the discovery/scraping pipeline
// hands to the grouper: a market id, its outcome tokens, and enough
// descriptive text to sanity-check binary-ness.
type RawMarket struct {
	MarketID string
	Question string
	EndDate  time.Time
	Resolved bool
	Outcomes []RawOutcome
}

// RawOutcome is one outcome token of a RawMarket.
type RawOutcome struct {
	TokenID string
	Label   string // e.g. "Yes" / "No"
}

// MarketGrouper validates raw market metadata and emits MarketPairs
// for binary YES/NO markets only.
type MarketGrouper struct {
	log *slog.Logger
}

// NewMarketGrouper creates a MarketGrouper.
func NewMarketGrouper(logger *slog.Logger) *MarketGrouper {
	return &MarketGrouper{log: logger.With(slog.String("component", "market_grouper"))}
}

// Group validates a RawMarket and returns its MarketPair, or false if
// the market is not a two-outcome, unresolved, YES/NO-labeled binary
// market.
func (g *MarketGrouper) Group(m RawMarket) (domain.MarketPair, bool) {
	if m.Resolved {
		g.log.Debug("skipping resolved market", slog.String("market_id", m.MarketID))
		return domain.MarketPair{}, false
	}
	if len(m.Outcomes) != 2 {
		g.log.Debug("skipping non-binary market", slog.String("market_id", m.MarketID), slog.Int("outcomes", len(m.Outcomes)))
		return domain.MarketPair{}, false
	}

	var yesTok, noTok string
	for _, o := range m.Outcomes {
		switch strings.ToLower(strings.TrimSpace(o.Label)) {
		case "yes":
			yesTok = o.TokenID
		case "no":
			noTok = o.TokenID
		}
	}
	if yesTok == "" || noTok == "" {
		g.log.Debug("outcome labels are not yes/no, skipping", slog.String("market_id", m.MarketID))
		return domain.MarketPair{}, false
	}

	pair := domain.MarketPair{
		MarketID:   m.MarketID,
		YesTokenID: yesTok,
		NoTokenID:  noTok,
		Question:   m.Question,
		EndDate:    m.EndDate,
	}
	if !pair.Valid() {
		return domain.MarketPair{}, false
	}
	return pair, true
}

// GroupAll filters a batch of raw markets down to valid MarketPairs.
func (g *MarketGrouper) GroupAll(markets []RawMarket) []domain.MarketPair {
	out := make([]domain.MarketPair, 0, len(markets))
	for _, m := range markets {
		if p, ok := g.Group(m); ok {
			out = append(out, p)
		}
	}
	return out
}
