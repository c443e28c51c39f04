package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/polyarb/engine/internal/domain"
)

// Recorder is the date-sharded append-only JSONL event log: one file
// per UTC day under baseDir, optionally mirrored to a BlobWriter
// (S3) on each flush. Grounded on src/core/recorder.py's
// buffer-then-flush shape and date-partitioned file layout, adapted
// from asyncio buffering to a synchronous mutex-guarded buffer flushed
// by a background ticker.
type Recorder struct {
	baseDir    string
	bufferSize int
	blob       domain.BlobWriter
	log        *slog.Logger

	mu     sync.Mutex
	buffer []Event
}

// NewRecorder creates a Recorder writing under baseDir. blob may be
// nil to disable the S3 mirror.
func NewRecorder(baseDir string, bufferSize int, blob domain.BlobWriter, logger *slog.Logger) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Recorder{
		baseDir:    baseDir,
		bufferSize: bufferSize,
		blob:       blob,
		log:        logger.With(slog.String("component", "event_recorder")),
	}
}

// Record implements Sink: appends e to the in-memory buffer, flushing
// synchronously once the buffer reaches its configured size.
func (r *Recorder) Record(e Event) {
	r.mu.Lock()
	r.buffer = append(r.buffer, e)
	shouldFlush := len(r.buffer) >= r.bufferSize
	r.mu.Unlock()

	if shouldFlush {
		if err := r.Flush(context.Background()); err != nil {
			r.log.Error("event flush failed", slog.String("error", err.Error()))
		}
	}
}

// Run periodically flushes the buffer until ctx is cancelled, so
// low-volume periods still get their events onto disk promptly.
func (r *Recorder) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = r.Flush(context.Background())
			return ctx.Err()
		case <-ticker.C:
			if err := r.Flush(ctx); err != nil {
				r.log.Error("periodic flush failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Flush writes every buffered event to today's shard and, if a blob
// writer is configured, mirrors the same batch to object storage.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	if len(r.buffer) == 0 {
		r.mu.Unlock()
		return nil
	}
	batch := r.buffer
	r.buffer = nil
	r.mu.Unlock()

	buf, err := marshalJSONL(batch)
	if err != nil {
		return fmt.Errorf("telemetry: marshal event batch: %w", err)
	}

	shardPath := r.shardPath(time.Now().UTC())
	if err := appendFile(shardPath, buf); err != nil {
		return fmt.Errorf("telemetry: write shard %s: %w", shardPath, err)
	}

	if r.blob != nil {
		key := blobKey(time.Now().UTC())
		if err := r.blob.Put(ctx, key, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			r.log.Warn("event mirror to blob storage failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (r *Recorder) shardPath(day time.Time) string {
	return filepath.Join(r.baseDir, day.Format("20060102"), "events.jsonl")
}

func blobKey(day time.Time) string {
	return fmt.Sprintf("events/%s/events.jsonl", day.Format("20060102"))
}

func appendFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

func marshalJSONL(events []Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, e := range events {
		if err := enc.Encode(e); err != nil {
			return nil, fmt.Errorf("jsonl encode event %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
