package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/polyarb/engine/internal/book"
	"github.com/polyarb/engine/internal/domain"
)

// WSBackoffInitial and WSBackoffMax are the reconnect backoff bounds:
// initial delay, doubling each attempt, capped.
const (
	WSBackoffInitial = 1 * time.Second
	WSBackoffMax     = 30 * time.Second
)

// InboundMessage is the ingestor's wire-agnostic view of one upstream
// message: either a full snapshot or a delta for one token.
type InboundMessage struct {
	MessageID string
	TokenID   string
	Seq       uint64
	IsSnapshot bool
	Bids      []domain.OrderLevel // snapshot only
	Asks      []domain.OrderLevel // snapshot only
	Updates   []book.DeltaUpdate  // delta only
	Timestamp time.Time
}

// EventRecorder is the subset of the telemetry bus the ingestor emits
// event_received records through.
type EventRecorder interface {
	RecordReceived(tokenID, traceID string, ts time.Time)
	RecordSequenceGap(tokenID string)
	RecordDuplicate(tokenID string)
}

// Ingestor applies inbound wire messages to a book.Store under
// dedup and per-token sequence discipline. It is the sole writer to
// the store for the tokens it owns.
type Ingestor struct {
	store *book.Store
	dedup *dedupLRU
	rec   EventRecorder
	log   *slog.Logger

	mu        sync.Mutex
	lastSeq   map[string]uint64
	seqGaps   int64
	subscribed map[string]bool
}

// NewIngestor creates an Ingestor writing into store, deduplicating
// against an LRU of at least dedupCapacity keys.
func NewIngestor(store *book.Store, dedupCapacity int, rec EventRecorder, logger *slog.Logger) *Ingestor {
	if dedupCapacity < 10000 {
		dedupCapacity = 10000
	}
	return &Ingestor{
		store:      store,
		dedup:      newDedupLRU(dedupCapacity),
		rec:        rec,
		log:        logger.With(slog.String("component", "feed_ingestor")),
		lastSeq:    make(map[string]uint64),
		subscribed: make(map[string]bool),
	}
}

// MarkSubscribed records that a token is being tracked, so reseed and
// resubscribe logic on reconnect knows the full subscription set.
func (in *Ingestor) MarkSubscribed(tokenID string) {
	in.mu.Lock()
	in.subscribed[tokenID] = true
	in.mu.Unlock()
}

// Subscriptions returns the current set of tracked token ids, for
// resubscribe-on-reconnect.
func (in *Ingestor) Subscriptions() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]string, 0, len(in.subscribed))
	for t := range in.subscribed {
		out = append(out, t)
	}
	return out
}

// fingerprint computes the dedup key: hash of message id + seq.
func fingerprint(msg InboundMessage) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s:%d", msg.MessageID, msg.Seq)
	return hex.EncodeToString(h.Sum(nil))
}

// Ingest applies one inbound message, handling dedup, then either
// sequence-gap/out-of-order rejection for deltas or unconditional
// acceptance for snapshots (a snapshot always overwrites state,
// regardless of its own seq, by design — it is the reseed mechanism).
func (in *Ingestor) Ingest(msg InboundMessage) error {
	traceID := msg.MessageID

	if in.dedup.SeenOrAdd(fingerprint(msg)) {
		if in.rec != nil {
			in.rec.RecordDuplicate(msg.TokenID)
		}
		in.log.Debug("duplicate message dropped", slog.String("token_id", msg.TokenID), slog.Uint64("seq", msg.Seq))
		return nil
	}

	if msg.IsSnapshot {
		in.store.ApplySnapshot(msg.TokenID, msg.Bids, msg.Asks, msg.Seq, msg.Timestamp)
		in.mu.Lock()
		in.lastSeq[msg.TokenID] = msg.Seq
		in.mu.Unlock()
		if in.rec != nil {
			in.rec.RecordReceived(msg.TokenID, traceID, msg.Timestamp)
		}
		return nil
	}

	in.mu.Lock()
	last := in.lastSeq[msg.TokenID]
	in.mu.Unlock()

	if msg.Seq <= last {
		in.log.Debug("stale delta dropped", slog.String("token_id", msg.TokenID), slog.Uint64("seq", msg.Seq), slog.Uint64("last", last))
		return domain.ErrStaleDelta
	}
	if msg.Seq > last+1 {
		in.mu.Lock()
		in.seqGaps++
		in.mu.Unlock()
		if in.rec != nil {
			in.rec.RecordSequenceGap(msg.TokenID)
		}
		in.log.Warn("sequence gap, requesting reseed", slog.String("token_id", msg.TokenID), slog.Uint64("seq", msg.Seq), slog.Uint64("last", last))
		return domain.ErrSequenceGap
	}

	if err := in.store.ApplyDelta(msg.TokenID, msg.Updates, msg.Seq, msg.Timestamp); err != nil {
		return err
	}
	in.mu.Lock()
	in.lastSeq[msg.TokenID] = msg.Seq
	in.mu.Unlock()

	if in.rec != nil {
		in.rec.RecordReceived(msg.TokenID, traceID, msg.Timestamp)
	}
	return nil
}

// SequenceGaps returns the cumulative count of detected sequence gaps.
func (in *Ingestor) SequenceGaps() int64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.seqGaps
}

// DuplicateHits returns the cumulative count of deduplicated messages.
func (in *Ingestor) DuplicateHits() int64 {
	return in.dedup.Hits()
}

// Reconnector drives a transport-level connect/subscribe loop with
// exponential backoff, replaying a snapshot request on every
// (re)connect. The transport itself (gorilla/websocket client) is
// injected via connectFn so this type stays wire-format agnostic.
type Reconnector struct {
	connectFn func(ctx context.Context) error
	log       *slog.Logger
}

// NewReconnector wraps connectFn, which should block for the duration
// of one connection and return a non-nil error on disconnect (nil on
// a clean, final shutdown).
func NewReconnector(connectFn func(ctx context.Context) error, logger *slog.Logger) *Reconnector {
	return &Reconnector{connectFn: connectFn, log: logger.With(slog.String("component", "feed_reconnector"))}
}

// Run loops connectFn until ctx is cancelled, applying exponential
// backoff (initial 1s, doubling, capped at 30s) between attempts, and
// resetting the delay after any connection that stayed up for at
// least WSBackoffMax.
func (r *Reconnector) Run(ctx context.Context) error {
	delay := WSBackoffInitial
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		start := time.Now()
		err := r.connectFn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(start) >= WSBackoffMax {
			delay = WSBackoffInitial
		}
		r.log.Warn("feed connection lost, backing off", slog.String("error", err.Error()), slog.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > WSBackoffMax {
			delay = WSBackoffMax
		}
	}
}
