package executor

import (
	"context"
	"testing"

	"github.com/polyarb/engine/internal/domain"
)

type stubSignalExecutor struct {
	calls  int
	result domain.TxResult
}

func (s *stubSignalExecutor) Execute(ctx context.Context, sig domain.Signal) (domain.TxResult, error) {
	s.calls++
	return s.result, nil
}

func TestRouterDispatchesToSimulatedWhenDryRun(t *testing.T) {
	sim := &stubSignalExecutor{result: domain.TxResult{Status: domain.TxStatusSuccess}}
	live := &stubSignalExecutor{}
	r := NewRouter(sim, live, true, testLogger())

	if _, err := r.Route(context.Background(), sampleSignal()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sim.calls != 1 || live.calls != 0 {
		t.Fatalf("expected simulated dispatch, sim=%d live=%d", sim.calls, live.calls)
	}
}

func TestRouterDispatchesToLiveWhenNotDryRun(t *testing.T) {
	sim := &stubSignalExecutor{}
	live := &stubSignalExecutor{result: domain.TxResult{Status: domain.TxStatusSuccess}}
	r := NewRouter(sim, live, false, testLogger())

	if _, err := r.Route(context.Background(), sampleSignal()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if live.calls != 1 || sim.calls != 0 {
		t.Fatalf("expected live dispatch, sim=%d live=%d", sim.calls, live.calls)
	}
}

func TestRouterSetDryRunTogglesMode(t *testing.T) {
	r := NewRouter(&stubSignalExecutor{}, &stubSignalExecutor{}, true, testLogger())
	if !r.DryRun() {
		t.Fatal("expected dry run true initially")
	}
	r.SetDryRun(false)
	if r.DryRun() {
		t.Fatal("expected dry run false after toggle")
	}
}
