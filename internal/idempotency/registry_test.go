package idempotency

import (
	"testing"
	"time"

	"github.com/polyarb/engine/internal/domain"
)

// submitting the same signal twice within the TTL yields the same
// TxResult and invokes the signing capability at most once. This test
// models "invokes at most once" as: the second Begin is suppressed
// before any work happens.
func TestDuplicateSubmissionSuppressedWhileInFlight(t *testing.T) {
	r := NewRegistry(100, time.Minute, nil)

	if _, err := r.Begin("key1"); err != nil {
		t.Fatalf("unexpected error on first begin: %v", err)
	}
	if _, err := r.Begin("key1"); err != domain.ErrDuplicateSuppressed {
		t.Fatalf("expected duplicate suppressed, got %v", err)
	}
}

func TestDuplicateSuppressedAfterDoneSuccess(t *testing.T) {
	r := NewRegistry(100, time.Minute, nil)
	r.Begin("key1")
	result := &domain.TxResult{IdempotencyKey: "key1", Status: domain.TxStatusSuccess}
	if err := r.Finalize("key1", StatusDoneSuccess, result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := r.Begin("key1"); err != domain.ErrDuplicateSuppressed {
		t.Fatalf("expected duplicate suppressed after success, got %v", err)
	}

	rec, _ := r.Lookup("key1")
	if rec.Result != result {
		t.Fatal("expected lookup to return the same TxResult pointer")
	}
}

func TestResubmissionAllowedAfterDoneFailure(t *testing.T) {
	r := NewRegistry(100, time.Minute, nil)
	r.Begin("key1")
	_ = r.Finalize("key1", StatusDoneFailure, nil)

	if _, err := r.Begin("key1"); err != nil {
		t.Fatalf("expected resubmission allowed after failure, got %v", err)
	}
}

func TestDoubleFinalizeToDifferentStatusIsInvariantViolation(t *testing.T) {
	r := NewRegistry(100, time.Minute, nil)
	r.Begin("key1")
	_ = r.Finalize("key1", StatusDoneSuccess, nil)
	if err := r.Finalize("key1", StatusDoneFailure, nil); err != domain.ErrInvariantViolation {
		t.Fatalf("expected invariant violation, got %v", err)
	}
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	r := NewRegistry(100, time.Millisecond, nil)
	r.Begin("key1")
	time.Sleep(5 * time.Millisecond)
	if removed := r.Sweep(); removed != 1 {
		t.Fatalf("expected 1 entry swept, got %d", removed)
	}
	if r.Size() != 0 {
		t.Fatalf("expected registry empty after sweep, got size %d", r.Size())
	}
}

func TestLRUEvictsOldestOverCapacity(t *testing.T) {
	r := NewRegistry(2, time.Minute, nil)
	r.Begin("a")
	r.Begin("b")
	r.Begin("c")
	if _, ok := r.Lookup("a"); ok {
		t.Fatal("expected oldest entry evicted")
	}
	if _, ok := r.Lookup("c"); !ok {
		t.Fatal("expected newest entry retained")
	}
}
