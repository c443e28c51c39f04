package chainops

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/polyarb/engine/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedNonceSource struct{ nonce uint64 }

func (f fixedNonceSource) PendingNonceAt(ctx context.Context, address string) (uint64, error) {
	return f.nonce, nil
}

func TestAllocateBeforeInitializeFails(t *testing.T) {
	n := New(fixedNonceSource{10}, "0xabc", testLogger())
	if _, err := n.Allocate(); err != domain.ErrNonceManagerUninitialized {
		t.Fatalf("expected uninitialized error, got %v", err)
	}
}

// across allocate/confirm/fail, no two successful submissions
// ever share a nonce.
func TestAllocateMonotonicallyIncreases(t *testing.T) {
	n := New(fixedNonceSource{10}, "0xabc", testLogger())
	_ = n.Initialize(context.Background())

	seen := make(map[uint64]bool)
	for i := 0; i < 5; i++ {
		nonce, err := n.Allocate()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[nonce] {
			t.Fatalf("nonce %d allocated twice", nonce)
		}
		seen[nonce] = true
		if err := n.MarkConfirmed(nonce); err != nil {
			t.Fatalf("unexpected error confirming: %v", err)
		}
	}
}

func TestMarkFailedReusesHighestPendingNonce(t *testing.T) {
	n := New(fixedNonceSource{10}, "0xabc", testLogger())
	_ = n.Initialize(context.Background())

	nonce, _ := n.Allocate()
	if nonce != 10 {
		t.Fatalf("expected first nonce 10, got %d", nonce)
	}
	n.MarkFailed(nonce)

	reused, _ := n.Allocate()
	if reused != 10 {
		t.Fatalf("expected nonce 10 reused after failure, got %d", reused)
	}
}

func TestMarkFailedMidSequenceLeavesGap(t *testing.T) {
	n := New(fixedNonceSource{10}, "0xabc", testLogger())
	_ = n.Initialize(context.Background())

	first, _ := n.Allocate()  // 10
	_, _ = n.Allocate()       // 11
	n.MarkFailed(first)       // not the highest pending; leaves a gap

	next, _ := n.Allocate()
	if next != 12 {
		t.Fatalf("expected next allocation to continue at 12, got %d", next)
	}
}

func TestDoubleConfirmIsInvariantViolation(t *testing.T) {
	n := New(fixedNonceSource{10}, "0xabc", testLogger())
	_ = n.Initialize(context.Background())
	nonce, _ := n.Allocate()
	_ = n.MarkConfirmed(nonce)
	if err := n.MarkConfirmed(nonce); err != domain.ErrInvariantViolation {
		t.Fatalf("expected invariant violation on double confirm, got %v", err)
	}
}
