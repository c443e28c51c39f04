package telemetry

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type collectingSink struct {
	events []Event
}

func (s *collectingSink) Record(e Event) {
	s.events = append(s.events, e)
}

func TestMarkStageAndLatencyBetween(t *testing.T) {
	b := NewBus(nil, testLogger())
	traceID := "trace-1"

	b.MarkStage(traceID, StageWSReceived)
	time.Sleep(time.Millisecond)
	b.MarkStage(traceID, StageOrderSent)

	d, ok := b.EndToEndLatency(traceID)
	if !ok {
		t.Fatal("expected latency to be computable")
	}
	if d <= 0 {
		t.Fatalf("expected positive latency, got %v", d)
	}
}

func TestLatencyBetweenMissingStageReturnsFalse(t *testing.T) {
	b := NewBus(nil, testLogger())
	if _, ok := b.LatencyBetween("unknown-trace", StageWSReceived, StageOrderSent); ok {
		t.Fatal("expected false for a trace with no marked stages")
	}
}

func TestEmitForwardsToSink(t *testing.T) {
	sink := &collectingSink{}
	b := NewBus(sink, testLogger())
	b.Emit(EventOpportunityFound, "trace-1", map[string]any{"gross_edge": "0.05"})

	if len(sink.events) != 1 {
		t.Fatalf("expected 1 event recorded, got %d", len(sink.events))
	}
	if sink.events[0].Type != EventOpportunityFound {
		t.Fatalf("expected opportunity_detected event, got %s", sink.events[0].Type)
	}
}

func TestForgetClearsStageState(t *testing.T) {
	b := NewBus(nil, testLogger())
	b.MarkStage("trace-1", StageWSReceived)
	b.Forget("trace-1")
	if _, ok := b.LatencyBetween("trace-1", StageWSReceived, StageOrderSent); ok {
		t.Fatal("expected stage state cleared after Forget")
	}
}
