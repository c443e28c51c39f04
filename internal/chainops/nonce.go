// Package chainops implements the nonce manager and gas-cost oracle
// for the live execution path, built around a go-ethereum onchain
// adapter (PendingNonceAt, SuggestGasPrice, USDC balanceOf).
package chainops

import (
	"context"
	"log/slog"
	"sync"

	"github.com/polyarb/engine/internal/domain"
)

// NonceSource is the chain client's pending-nonce query, satisfied by
// an ethclient.Client adapter.
type NonceSource interface {
	PendingNonceAt(ctx context.Context, address string) (uint64, error)
}

// NonceManager allocates monotonically increasing nonces for a single
// wallet, serialized under one mutex, with safe reuse on failure.
type NonceManager struct {
	source  NonceSource
	address string
	log     *slog.Logger

	mu            sync.Mutex
	initialized   bool
	nextNonce     uint64
	pendingSet    map[uint64]struct{}
	confirmedSet  map[uint64]struct{}
}

// New creates a NonceManager for the given wallet address. Initialize
// must be called before Allocate.
func New(source NonceSource, address string, logger *slog.Logger) *NonceManager {
	return &NonceManager{
		source:       source,
		address:      address,
		log:          logger.With(slog.String("component", "nonce_manager")),
		pendingSet:   make(map[uint64]struct{}),
		confirmedSet: make(map[uint64]struct{}),
	}
}

// Initialize recovers the chain's pending-nonce view as the starting
// point for allocation. Safe to call again on restart; this always
// takes the chain's view as source of truth, never a local snapshot.
func (n *NonceManager) Initialize(ctx context.Context) error {
	nonce, err := n.source.PendingNonceAt(ctx, n.address)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextNonce = nonce
	n.initialized = true
	n.log.Info("nonce manager initialized", slog.Uint64("next_nonce", nonce))
	return nil
}

// Allocate returns the next available nonce, incrementing the
// internal counter and recording it pending. Returns
// ErrNonceManagerUninitialized if Initialize has not run.
func (n *NonceManager) Allocate() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.initialized {
		return 0, domain.ErrNonceManagerUninitialized
	}
	nonce := n.nextNonce
	n.nextNonce++
	n.pendingSet[nonce] = struct{}{}
	return nonce, nil
}

// MarkConfirmed moves a nonce from pending to confirmed. Calling this
// for a nonce that is already confirmed is an invariant violation: no
// nonce is finalized twice.
func (n *NonceManager) MarkConfirmed(nonce uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, already := n.confirmedSet[nonce]; already {
		return domain.ErrInvariantViolation
	}
	delete(n.pendingSet, nonce)
	n.confirmedSet[nonce] = struct{}{}
	return nil
}

// MarkFailed releases a nonce after a terminal failure. If it is the
// highest still-pending nonce (i.e. nextNonce-1), the nonce is safely
// reused by decrementing nextNonce; otherwise it leaves a gap to be
// reclaimed on the next Initialize.
func (n *NonceManager) MarkFailed(nonce uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.pendingSet, nonce)
	if n.initialized && nonce == n.nextNonce-1 {
		n.nextNonce = nonce
	}
}

// IsPending reports whether a nonce is currently allocated and
// unresolved.
func (n *NonceManager) IsPending(nonce uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.pendingSet[nonce]
	return ok
}

// Snapshot returns the current allocation state for diagnostics.
func (n *NonceManager) Snapshot() domain.NonceSnapshot {
	n.mu.Lock()
	defer n.mu.Unlock()

	pending := make([]uint64, 0, len(n.pendingSet))
	for nonce := range n.pendingSet {
		pending = append(pending, nonce)
	}
	return domain.NonceSnapshot{
		NextNonce:      n.nextNonce,
		PendingCount:   len(n.pendingSet),
		ConfirmedCount: len(n.confirmedSet),
		PendingNonces:  pending,
	}
}
