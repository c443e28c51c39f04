package feed

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/book"
	"github.com/polyarb/engine/internal/domain"
)

// IngestSink is the subset of Ingestor the adapter drives.
type IngestSink interface {
	Ingest(msg InboundMessage) error
}

// EngineAdapter bridges the existing PolymarketWSFeed's float64-based
// snapshot/price-change callbacks into the decimal Ingestor. It keeps
// a per-token sequence counter since the upstream WS callbacks do not
// themselves expose one.
type EngineAdapter struct {
	sink IngestSink
	log  *slog.Logger

	seq map[string]uint64
}

// NewEngineAdapter creates an adapter feeding the given sink.
func NewEngineAdapter(sink IngestSink, logger *slog.Logger) *EngineAdapter {
	return &EngineAdapter{
		sink: sink,
		log:  logger.With(slog.String("component", "engine_adapter")),
		seq:  make(map[string]uint64),
	}
}

// OnBookUpdate converts a full snapshot into an InboundMessage.
func (a *EngineAdapter) OnBookUpdate(_ context.Context, snap domain.OrderbookSnapshot) {
	a.seq[snap.AssetID]++
	msg := InboundMessage{
		MessageID:  uuid.New().String(),
		TokenID:    snap.AssetID,
		Seq:        a.seq[snap.AssetID],
		IsSnapshot: true,
		Bids:       toLevels(snap.AssetID, snap.Bids),
		Asks:       toLevels(snap.AssetID, snap.Asks),
		Timestamp:  snap.Timestamp,
	}
	if err := a.sink.Ingest(msg); err != nil {
		a.log.Warn("snapshot ingest failed", slog.String("token_id", snap.AssetID), slog.String("error", err.Error()))
	}
}

// OnPriceChange converts one incremental level change into a
// single-update delta InboundMessage.
func (a *EngineAdapter) OnPriceChange(_ context.Context, change domain.PriceChange) {
	a.seq[change.AssetID]++
	side := domain.OrderSideBuy
	if change.Side == "SELL" {
		side = domain.OrderSideSell
	}
	msg := InboundMessage{
		MessageID: uuid.New().String(),
		TokenID:   change.AssetID,
		Seq:       a.seq[change.AssetID],
		Updates: []book.DeltaUpdate{{
			Side: side,
			Level: domain.OrderLevel{
				Price:   decimal.NewFromFloat(change.Price),
				Size:    decimal.NewFromFloat(change.Size),
				TokenID: change.AssetID,
			},
		}},
		Timestamp: change.Timestamp,
	}
	if err := a.sink.Ingest(msg); err != nil {
		a.log.Debug("delta ingest failed, awaiting reseed", slog.String("token_id", change.AssetID), slog.String("error", err.Error()))
	}
}

func toLevels(tokenID string, levels []domain.PriceLevel) []domain.OrderLevel {
	out := make([]domain.OrderLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, domain.OrderLevel{
			Price:   decimal.NewFromFloat(l.Price),
			Size:    decimal.NewFromFloat(l.Size),
			TokenID: tokenID,
		})
	}
	return out
}
