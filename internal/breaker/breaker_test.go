package breaker

import (
	"testing"
	"time"

	"github.com/polyarb/engine/internal/domain"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.OpenTimeout = 20 * time.Millisecond
	cfg.ConsecutiveFailuresThreshold = 3
	return cfg
}

// Scenario 5: 3 consecutive failures trip the breaker; the 4th
// submission is rejected CIRCUIT_OPEN; after the timeout, a probe is
// admitted.
func TestThreeConsecutiveFailuresTrip(t *testing.T) {
	b := New("live", fastConfig())

	for i := 0; i < 3; i++ {
		h, err := b.Admit()
		if err != nil {
			t.Fatalf("attempt %d: unexpected reject: %v", i, err)
		}
		h.Failure(0)
	}

	if b.State() != domain.CircuitOpen {
		t.Fatalf("expected OPEN after 3 consecutive failures, got %s", b.State())
	}

	if _, err := b.Admit(); err != domain.ErrCircuitOpen {
		t.Fatalf("expected 4th submission rejected CIRCUIT_OPEN, got %v", err)
	}
}

// after open_timeout elapses with no further failures, the
// breaker admits at least one probe.
func TestHalfOpenAdmitsProbeAfterTimeout(t *testing.T) {
	b := New("live", fastConfig())
	for i := 0; i < 3; i++ {
		h, _ := b.Admit()
		h.Failure(0)
	}

	time.Sleep(30 * time.Millisecond)

	h, err := b.Admit()
	if err != nil {
		t.Fatalf("expected a probe to be admitted after timeout, got %v", err)
	}
	if b.State() != domain.CircuitHalfOpen {
		t.Fatalf("expected HALF_OPEN, got %s", b.State())
	}
	h.Success()
	if b.State() != domain.CircuitClosed {
		t.Fatalf("expected CLOSED after successful probe, got %s", b.State())
	}
}

func TestHalfOpenFailureReturnsToOpen(t *testing.T) {
	b := New("live", fastConfig())
	for i := 0; i < 3; i++ {
		h, _ := b.Admit()
		h.Failure(0)
	}
	time.Sleep(30 * time.Millisecond)

	h, err := b.Admit()
	if err != nil {
		t.Fatalf("expected probe admitted, got %v", err)
	}
	h.Failure(0)
	if b.State() != domain.CircuitOpen {
		t.Fatalf("expected OPEN after failed probe, got %s", b.State())
	}
}

func TestHalfOpenCapsConcurrentProbes(t *testing.T) {
	cfg := fastConfig()
	cfg.HalfOpenMaxCalls = 1
	b := New("live", cfg)
	for i := 0; i < 3; i++ {
		h, _ := b.Admit()
		h.Failure(0)
	}
	time.Sleep(30 * time.Millisecond)

	_, err := b.Admit()
	if err != nil {
		t.Fatalf("expected first probe admitted, got %v", err)
	}
	if _, err := b.Admit(); err != domain.ErrCircuitOpen {
		t.Fatalf("expected second concurrent probe rejected, got %v", err)
	}
}

func TestGasCostThresholdTripsImmediately(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConsecutiveFailuresThreshold = 100
	cfg.GasCostThreshold = 2.0
	b := New("live", cfg)

	h, _ := b.Admit()
	h.Failure(5.0)

	if b.State() != domain.CircuitOpen {
		t.Fatalf("expected OPEN after gas cost threshold exceeded on failure, got %s", b.State())
	}
}

func TestHandleReportsOnlyOnce(t *testing.T) {
	b := New("live", fastConfig())
	h, _ := b.Admit()
	h.Success()
	h.Failure(0) // should be a no-op
	if b.State() != domain.CircuitClosed {
		t.Fatalf("expected second report to be ignored, state=%s", b.State())
	}
}
