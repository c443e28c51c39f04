// Package breaker implements the three-state circuit breaker guarding
// the live execution path: CLOSED, OPEN, HALF_OPEN, with cap-limited
// half-open probe admission, extending a simpler two-state breaker
// into a full half-open probing state machine.
package breaker

import (
	"sync"
	"time"

	"github.com/polyarb/engine/internal/domain"
)

// Config holds the breaker's tripping and recovery thresholds.
type Config struct {
	ConsecutiveFailuresThreshold int
	FailureRateThreshold         float64 // e.g. 0.5
	RateWindowCalls              int     // e.g. 20
	OpenTimeout                  time.Duration
	HalfOpenMaxCalls             int
	GasCostThreshold             float64
}

// DefaultConfig mirrors the source defaults: 3 consecutive failures,
// 50% failure rate over 20 calls, 60s open timeout, 3 half-open
// probes.
func DefaultConfig() Config {
	return Config{
		ConsecutiveFailuresThreshold: 3,
		FailureRateThreshold:         0.5,
		RateWindowCalls:              20,
		OpenTimeout:                  60 * time.Second,
		HalfOpenMaxCalls:             3,
		GasCostThreshold:             2.0,
	}
}

type callResult struct {
	success bool
	gasCost float64
}

// Breaker is a single named circuit breaker. Successful/failed
// outcomes must be reported back exactly once per admitted call via
// the handle returned by Admit.
type Breaker struct {
	cfg  Config
	name string

	mu                  sync.Mutex
	state               domain.CircuitState
	stateChangedAt      time.Time
	consecutiveFailures int
	history             []callResult
	halfOpenInFlight    int
}

// New creates a Breaker in the CLOSED state.
func New(name string, cfg Config) *Breaker {
	return &Breaker{
		cfg:            cfg,
		name:           name,
		state:          domain.CircuitClosed,
		stateChangedAt: time.Now().UTC(),
	}
}

// Handle is returned by Admit; the caller must call exactly one of
// Success or Failure.
type Handle struct {
	b        *Breaker
	reported bool
}

// Admit decides whether a call may proceed. It returns
// domain.ErrCircuitOpen if the breaker is OPEN (the timeout has not
// yet elapsed) or if HALF_OPEN admission is already at capacity.
func (b *Breaker) Admit() (*Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case domain.CircuitOpen:
		if time.Since(b.stateChangedAt) >= b.cfg.OpenTimeout {
			b.transitionLocked(domain.CircuitHalfOpen)
		} else {
			return nil, domain.ErrCircuitOpen
		}
	}

	if b.state == domain.CircuitHalfOpen {
		if b.halfOpenInFlight >= b.cfg.HalfOpenMaxCalls {
			return nil, domain.ErrCircuitOpen
		}
		b.halfOpenInFlight++
	}

	return &Handle{b: b}, nil
}

// Success reports that the admitted call succeeded.
func (h *Handle) Success() { h.report(callResult{success: true}) }

// Failure reports that the admitted call failed, optionally with the
// measured gas cost in USDC for gas-threshold tripping.
func (h *Handle) Failure(gasCostUSDC float64) { h.report(callResult{success: false, gasCost: gasCostUSDC}) }

func (h *Handle) report(res callResult) {
	if h.reported {
		return
	}
	h.reported = true
	h.b.record(res)
}

func (b *Breaker) record(res callResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history = append(b.history, res)
	if len(b.history) > b.cfg.RateWindowCalls {
		b.history = b.history[len(b.history)-b.cfg.RateWindowCalls:]
	}

	wasHalfOpen := b.state == domain.CircuitHalfOpen
	if wasHalfOpen && b.halfOpenInFlight > 0 {
		b.halfOpenInFlight--
	}

	if res.success {
		b.consecutiveFailures = 0
		if wasHalfOpen {
			// All admitted probes must succeed before CLOSED; if any are
			// still in flight, wait for them.
			if b.halfOpenInFlight == 0 {
				b.transitionLocked(domain.CircuitClosed)
				b.history = nil
			}
		}
		return
	}

	b.consecutiveFailures++
	if wasHalfOpen {
		b.transitionLocked(domain.CircuitOpen)
		return
	}

	if b.shouldTripLocked(res) {
		b.transitionLocked(domain.CircuitOpen)
	}
}

func (b *Breaker) shouldTripLocked(res callResult) bool {
	if b.cfg.GasCostThreshold > 0 && res.gasCost > b.cfg.GasCostThreshold {
		return true
	}
	if b.consecutiveFailures >= b.cfg.ConsecutiveFailuresThreshold {
		return true
	}
	// The failure rate is only judged over a full window of calls.
	if len(b.history) == 0 || len(b.history) < b.cfg.RateWindowCalls {
		return false
	}
	failures := 0
	for _, c := range b.history {
		if !c.success {
			failures++
		}
	}
	rate := float64(failures) / float64(len(b.history))
	return rate >= b.cfg.FailureRateThreshold
}

func (b *Breaker) transitionLocked(to domain.CircuitState) {
	b.state = to
	b.stateChangedAt = time.Now().UTC()
	if to != domain.CircuitHalfOpen {
		b.halfOpenInFlight = 0
	}
	if to == domain.CircuitClosed {
		b.consecutiveFailures = 0
	}
}

// State returns the current state.
func (b *Breaker) State() domain.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the full diagnostic snapshot.
func (b *Breaker) Snapshot() domain.CircuitSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	failures := 0
	for _, c := range b.history {
		if !c.success {
			failures++
		}
	}
	rate := 0.0
	if len(b.history) > 0 {
		rate = float64(failures) / float64(len(b.history))
	}

	snap := domain.CircuitSnapshot{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		FailureRate:         rate,
		HalfOpenInFlight:    b.halfOpenInFlight,
		StateChangedAt:      b.stateChangedAt,
	}
	if b.state == domain.CircuitOpen {
		snap.OpenUntil = b.stateChangedAt.Add(b.cfg.OpenTimeout)
	}
	return snap
}

// Trip forces an immediate trip to OPEN, used by the anomaly guard
// when severity crosses the manipulation-risk threshold.
func (b *Breaker) Trip(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = reason
	b.transitionLocked(domain.CircuitOpen)
}
