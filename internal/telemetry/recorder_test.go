package telemetry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecorderFlushWritesShardFile(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 100, nil, testLogger())

	r.Record(Event{Type: EventReceived, TraceID: "t1", Timestamp: time.Now().UTC()})
	if err := r.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	shard := filepath.Join(dir, time.Now().UTC().Format("20060102"), "events.jsonl")
	data, err := os.ReadFile(shard)
	if err != nil {
		t.Fatalf("expected shard file written: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(data[:len(data)-1], &decoded); err != nil {
		t.Fatalf("expected valid JSONL line: %v", err)
	}
	if decoded.TraceID != "t1" {
		t.Fatalf("expected trace id t1, got %s", decoded.TraceID)
	}
}

func TestRecorderAutoFlushesAtBufferSize(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 2, nil, testLogger())

	r.Record(Event{Type: EventReceived, TraceID: "t1", Timestamp: time.Now().UTC()})
	r.Record(Event{Type: EventReceived, TraceID: "t2", Timestamp: time.Now().UTC()})

	shard := filepath.Join(dir, time.Now().UTC().Format("20060102"), "events.jsonl")
	if _, err := os.Stat(shard); err != nil {
		t.Fatalf("expected auto-flush to have written the shard file: %v", err)
	}
}

func TestFlushWithEmptyBufferIsNoop(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 100, nil, testLogger())
	if err := r.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	shard := filepath.Join(dir, time.Now().UTC().Format("20060102"), "events.jsonl")
	if _, err := os.Stat(shard); err == nil {
		t.Fatal("expected no shard file written for an empty flush")
	}
}
