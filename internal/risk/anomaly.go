package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Severity thresholds: at or above Trip, the circuit breaker is
// tripped; at or above Degrade but below Trip, admitted trade size is
// halved rather than rejected outright.
const (
	AnomalyTripSeverity    = 0.7
	AnomalyDegradeSeverity = 0.4
)

// AnomalyConfig holds the guard's per-signal thresholds.
type AnomalyConfig struct {
	Window                time.Duration
	PulseThreshold        float64
	DepthThreshold        float64
	CorrelationThreshold  float64
}

// DefaultAnomalyConfig mirrors the source defaults.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		Window:               60 * time.Second,
		PulseThreshold:       0.15,
		DepthThreshold:       0.5,
		CorrelationThreshold: 0.1,
	}
}

type sample struct {
	ts          time.Time
	price       decimal.Decimal
	depth       decimal.Decimal
	complement  decimal.Decimal // 1 - other leg's price, for correlation divergence
}

// AnomalyGuard maintains a short rolling window of price/depth samples
// per market and flags manipulation-risk or abnormal-volatility
// conditions. Grounded on a ring-buffer-of-samples pattern; severity
// is the worst of three independent signals.
type AnomalyGuard struct {
	cfg AnomalyConfig

	mu      sync.Mutex
	samples map[string][]sample
}

// NewAnomalyGuard creates an AnomalyGuard.
func NewAnomalyGuard(cfg AnomalyConfig) *AnomalyGuard {
	return &AnomalyGuard{cfg: cfg, samples: make(map[string][]sample)}
}

// Observe records a new price/depth sample for a market, used by the
// pair detector or feed ingestor on every book update.
func (g *AnomalyGuard) Observe(marketID string, price, depth, complement decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UTC()
	s := g.samples[marketID]
	s = append(s, sample{ts: now, price: price, depth: depth, complement: complement})

	cutoff := now.Add(-g.cfg.Window)
	trimmed := s[:0]
	for _, e := range s {
		if e.ts.After(cutoff) {
			trimmed = append(trimmed, e)
		}
	}
	g.samples[marketID] = trimmed
}

// Check computes the current severity for a market and returns any
// risk tags that apply.
func (g *AnomalyGuard) Check(marketID string) (float64, []string) {
	g.mu.Lock()
	s := append([]sample(nil), g.samples[marketID]...)
	g.mu.Unlock()

	if len(s) < 2 {
		return 0, nil
	}

	oldest := s[0]
	latest := s[len(s)-1]

	var severity float64
	var tags []string

	if oldest.price.IsPositive() {
		pulse, _ := oldest.price.Sub(latest.price).Abs().Div(oldest.price).Float64()
		if pulse > g.cfg.PulseThreshold {
			excess := (pulse - g.cfg.PulseThreshold) / g.cfg.PulseThreshold
			severity = maxF(severity, clamp01(excess))
			tags = append(tags, "price_pulse")
		}
	}

	if oldest.depth.IsPositive() {
		drop, _ := oldest.depth.Sub(latest.depth).Div(oldest.depth).Float64()
		if drop > g.cfg.DepthThreshold {
			excess := (drop - g.cfg.DepthThreshold) / g.cfg.DepthThreshold
			severity = maxF(severity, clamp01(excess))
			tags = append(tags, "depth_drop")
		}
	}

	deltaPrice := latest.price.Sub(oldest.price)
	deltaComplement := latest.complement.Sub(oldest.complement)
	divergence, _ := deltaPrice.Sub(deltaComplement).Abs().Float64()
	if divergence > g.cfg.CorrelationThreshold {
		excess := (divergence - g.cfg.CorrelationThreshold) / g.cfg.CorrelationThreshold
		severity = maxF(severity, clamp01(excess))
		tags = append(tags, "correlation_divergence")
	}

	if severity >= AnomalyDegradeSeverity {
		tags = append(tags, "anomaly_degraded")
	}

	return severity, tags
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
