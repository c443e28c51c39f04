package feed

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyarb/engine/internal/book"
	"github.com/polyarb/engine/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func lvl(price, size string) domain.OrderLevel {
	return domain.OrderLevel{Price: decimal.RequireFromString(price), Size: decimal.RequireFromString(size)}
}

func TestIngestorRejectsStaleAfterAcceptingSeq(t *testing.T) {
	store := book.New(50)
	in := NewIngestor(store, 10000, nil, testLogger())

	in.Ingest(InboundMessage{MessageID: "m1", TokenID: "tok1", Seq: 100, IsSnapshot: true, Asks: []domain.OrderLevel{lvl("0.5", "10")}, Timestamp: time.Now()})

	err := in.Ingest(InboundMessage{MessageID: "m2", TokenID: "tok1", Seq: 100, Updates: []book.DeltaUpdate{{Side: domain.OrderSideSell, Level: lvl("0.51", "5")}}, Timestamp: time.Now()})
	if err != domain.ErrStaleDelta {
		t.Fatalf("expected stale delta rejection for seq <= last, got %v", err)
	}
}

func TestIngestorSequenceGapTriggersReseedSignal(t *testing.T) {
	store := book.New(50)
	in := NewIngestor(store, 10000, nil, testLogger())

	in.Ingest(InboundMessage{MessageID: "m1", TokenID: "tok1", Seq: 100, IsSnapshot: true, Asks: []domain.OrderLevel{lvl("0.5", "10")}, Timestamp: time.Now()})

	err := in.Ingest(InboundMessage{MessageID: "m2", TokenID: "tok1", Seq: 102, Updates: []book.DeltaUpdate{{Side: domain.OrderSideSell, Level: lvl("0.52", "5")}}, Timestamp: time.Now()})
	if err != domain.ErrSequenceGap {
		t.Fatalf("expected sequence gap error, got %v", err)
	}
	if in.SequenceGaps() != 1 {
		t.Fatalf("expected 1 sequence gap recorded, got %d", in.SequenceGaps())
	}

	// Detection must not have observed the dropped delta: book state
	// still reflects only the snapshot.
	snap := store.Snapshot("tok1")
	if len(snap.Asks) != 1 || !snap.Asks[0].Price.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("book mutated by a dropped gap delta: %+v", snap.Asks)
	}

	// A fresh snapshot overwrites state regardless of its own seq.
	in.Ingest(InboundMessage{MessageID: "m3", TokenID: "tok1", Seq: 200, IsSnapshot: true, Asks: []domain.OrderLevel{lvl("0.60", "1")}, Timestamp: time.Now()})
	snap = store.Snapshot("tok1")
	if !snap.Asks[0].Price.Equal(decimal.RequireFromString("0.60")) {
		t.Fatalf("expected reseed snapshot to overwrite state, got %+v", snap.Asks)
	}
}

func TestIngestorDropsDuplicateMessage(t *testing.T) {
	store := book.New(50)
	in := NewIngestor(store, 10000, nil, testLogger())

	msg := InboundMessage{MessageID: "dup1", TokenID: "tok1", Seq: 1, IsSnapshot: true, Asks: []domain.OrderLevel{lvl("0.5", "10")}, Timestamp: time.Now()}
	if err := in.Ingest(msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := in.Ingest(msg); err != nil {
		t.Fatalf("duplicate should be silently dropped, got error: %v", err)
	}
	if in.DuplicateHits() != 1 {
		t.Fatalf("expected 1 duplicate hit, got %d", in.DuplicateHits())
	}
}

func TestIngestorAppliesInOrderDelta(t *testing.T) {
	store := book.New(50)
	in := NewIngestor(store, 10000, nil, testLogger())
	in.Ingest(InboundMessage{MessageID: "m1", TokenID: "tok1", Seq: 1, IsSnapshot: true, Asks: []domain.OrderLevel{lvl("0.5", "10")}, Timestamp: time.Now()})
	err := in.Ingest(InboundMessage{MessageID: "m2", TokenID: "tok1", Seq: 2, Updates: []book.DeltaUpdate{{Side: domain.OrderSideSell, Level: lvl("0.55", "3")}}, Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := store.Snapshot("tok1")
	if len(snap.Asks) != 2 {
		t.Fatalf("expected 2 ask levels, got %d", len(snap.Asks))
	}
}
