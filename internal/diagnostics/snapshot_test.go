package diagnostics

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/polyarb/engine/internal/breaker"
	"github.com/polyarb/engine/internal/chainops"
	"github.com/polyarb/engine/internal/idempotency"
	"github.com/polyarb/engine/internal/pnl"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedNonceSource struct{}

func (fixedNonceSource) PendingNonceAt(ctx context.Context, address string) (uint64, error) {
	return 5, nil
}

func TestCollectAssemblesAllComponents(t *testing.T) {
	cb := breaker.New("test", breaker.DefaultConfig())
	nm := chainops.New(fixedNonceSource{}, "0xabc", testLogger())
	_ = nm.Initialize(context.Background())
	idem := idempotency.NewRegistry(10, time.Minute, nil)
	tracker := pnl.NewTracker()

	c := NewCollector(cb, nm, idem, tracker)
	snap := c.Collect()

	if snap.Nonce.NextNonce != 5 {
		t.Fatalf("expected next nonce 5, got %d", snap.Nonce.NextNonce)
	}
	if snap.GeneratedAt.IsZero() {
		t.Fatal("expected generated_at populated")
	}
}

func TestCollectToleratesNilComponents(t *testing.T) {
	c := NewCollector(nil, nil, nil, nil)
	snap := c.Collect()
	if snap.GeneratedAt.IsZero() {
		t.Fatal("expected generated_at populated even with nil components")
	}
}
