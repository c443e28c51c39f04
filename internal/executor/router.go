// Router dispatches signals to a simulated or live executor. A single
// process-wide flag decides, once per Signal, whether it is routed to
// the simulated or the live path — the two paths produce the same
// domain.TxResult shape so callers never branch on which one ran.
package executor

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/polyarb/engine/internal/domain"
)

// SignalExecutor is satisfied by both the simulated and the live executor.
type SignalExecutor interface {
	Execute(ctx context.Context, sig domain.Signal) (domain.TxResult, error)
}

// Router reads a dry-run/live flag exactly once per Signal and dispatches
// accordingly. The flag itself may be flipped at runtime (e.g. an operator
// kill switch); Router.SetDryRun is safe for concurrent use with Route.
type Router struct {
	dryRun int32 // atomic bool

	sim  SignalExecutor
	live SignalExecutor
	log  *slog.Logger
}

// NewRouter creates a Router starting in the given dry-run mode.
func NewRouter(sim, live SignalExecutor, dryRun bool, logger *slog.Logger) *Router {
	r := &Router{
		sim:  sim,
		live: live,
		log:  logger.With(slog.String("component", "execution_router")),
	}
	r.SetDryRun(dryRun)
	return r
}

// SetDryRun flips the dispatch flag. Takes effect for every Route call after
// it returns; any Route already past its single read is unaffected.
func (r *Router) SetDryRun(v bool) {
	if v {
		atomic.StoreInt32(&r.dryRun, 1)
	} else {
		atomic.StoreInt32(&r.dryRun, 0)
	}
}

// DryRun reports the router's current mode.
func (r *Router) DryRun() bool {
	return atomic.LoadInt32(&r.dryRun) != 0
}

// Route dispatches sig to the simulated or live executor based on a single
// read of the dry-run flag, so one Signal's execution never straddles both
// paths even if the flag changes mid-flight.
func (r *Router) Route(ctx context.Context, sig domain.Signal) (domain.TxResult, error) {
	dryRun := r.DryRun()
	log := r.log.With(slog.String("trace_id", sig.TraceID), slog.Bool("dry_run", dryRun))

	if dryRun {
		log.Debug("routing signal to simulated executor")
		return r.sim.Execute(ctx, sig)
	}
	log.Debug("routing signal to live executor")
	return r.live.Execute(ctx, sig)
}
