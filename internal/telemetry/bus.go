// Package telemetry implements the trace-id propagation, latency-bucket
// accounting, and structured event bus that spans the ingest-to-fill
// pipeline. Grounded on src/core/telemetry.py's event taxonomy and
// trace-context shape, re-expressed as a synchronous Go bus over
// log/slog rather than an asyncio context variable.
package telemetry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType is the structured taxonomy of pipeline milestones the bus
// records.
type EventType string

const (
	EventReceived         EventType = "event_received"
	EventOpportunityFound EventType = "opportunity_detected"
	EventRiskPassed       EventType = "risk_passed"
	EventOrderSubmitted   EventType = "order_submitted"
	EventFillObserved     EventType = "fill_observed"
	EventPnLUpdate        EventType = "pnl_update"
)

// Stage marks a named point in the pipeline for latency-bucket
// computation between consecutive stages of the same trace.
type Stage string

const (
	StageWSReceived   Stage = "ws_received"
	StageBookApplied  Stage = "book_applied"
	StageSignalReady  Stage = "signal_ready"
	StageRiskDecided  Stage = "risk_decided"
	StageOrderSent    Stage = "order_sent"
)

// Event is one structured telemetry record.
type Event struct {
	Type      EventType      `json:"event_type"`
	TraceID   string         `json:"trace_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Sink receives every Event the bus emits; Recorder implements it for
// durable JSONL persistence, but tests can substitute a simple slice
// collector.
type Sink interface {
	Record(e Event)
}

// Bus is the process-wide telemetry hub: trace id generation, stage
// timestamps for latency computation, and event fan-out to a Sink and
// to structured logs.
type Bus struct {
	log  *slog.Logger
	sink Sink

	mu     sync.Mutex
	stages map[string]map[Stage]time.Time
}

// NewBus creates a Bus. sink may be nil, in which case events are only
// logged, not persisted.
func NewBus(sink Sink, logger *slog.Logger) *Bus {
	return &Bus{
		log:    logger.With(slog.String("component", "telemetry")),
		sink:   sink,
		stages: make(map[string]map[Stage]time.Time),
	}
}

// NewTraceID generates a fresh trace identifier for a new pipeline run.
func NewTraceID() string {
	return uuid.New().String()
}

// MarkStage timestamps traceID's arrival at stage, for later latency
// computation via LatencyBetween. Safe for concurrent use across
// distinct trace ids.
func (b *Bus) MarkStage(traceID string, stage Stage) {
	now := time.Now().UTC()
	b.mu.Lock()
	m, ok := b.stages[traceID]
	if !ok {
		m = make(map[Stage]time.Time)
		b.stages[traceID] = m
	}
	m[stage] = now
	b.mu.Unlock()
}

// LatencyBetween returns the duration between two previously marked
// stages of the same trace, or false if either stage was never marked.
func (b *Bus) LatencyBetween(traceID string, from, to Stage) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.stages[traceID]
	if !ok {
		return 0, false
	}
	fromTS, ok := m[from]
	if !ok {
		return 0, false
	}
	toTS, ok := m[to]
	if !ok {
		return 0, false
	}
	return toTS.Sub(fromTS), true
}

// EndToEndLatency returns the duration from ws_received to order_sent
// for a trace, the headline latency figure operators watch.
func (b *Bus) EndToEndLatency(traceID string) (time.Duration, bool) {
	return b.LatencyBetween(traceID, StageWSReceived, StageOrderSent)
}

// Forget drops a trace's stage timestamps once it has resolved
// (fill observed or rejected), bounding stages' memory growth.
func (b *Bus) Forget(traceID string) {
	b.mu.Lock()
	delete(b.stages, traceID)
	b.mu.Unlock()
}

// Emit records a structured event: logs it at Info level and
// forwards it to the configured Sink, if any.
func (b *Bus) Emit(evType EventType, traceID string, data map[string]any) {
	evt := Event{Type: evType, TraceID: traceID, Timestamp: time.Now().UTC(), Data: data}

	attrs := []any{slog.String("trace_id", traceID), slog.String("event_type", string(evType))}
	for k, v := range data {
		attrs = append(attrs, slog.Any(k, v))
	}
	b.log.Info("telemetry event", attrs...)

	if b.sink != nil {
		b.sink.Record(evt)
	}
}
