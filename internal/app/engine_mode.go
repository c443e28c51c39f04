package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/polyarb/engine/internal/arbitrage"
	"github.com/polyarb/engine/internal/book"
	"github.com/polyarb/engine/internal/breaker"
	"github.com/polyarb/engine/internal/chainops"
	"github.com/polyarb/engine/internal/crypto"
	"github.com/polyarb/engine/internal/diagnostics"
	"github.com/polyarb/engine/internal/domain"
	"github.com/polyarb/engine/internal/executor"
	"github.com/polyarb/engine/internal/feed"
	"github.com/polyarb/engine/internal/idempotency"
	"github.com/polyarb/engine/internal/pnl"
	"github.com/polyarb/engine/internal/platform/polymarket"
	"github.com/polyarb/engine/internal/retry"
	"github.com/polyarb/engine/internal/risk"
	"github.com/polyarb/engine/internal/telemetry"
)

// fixedBalance answers risk.BalanceSource with a configured ceiling.
// Used only when no wallet/RPC is configured to poll a real on-chain
// USDC balance (dry-run or simulated-only deployments); see
// chainops.BalancePoller for the live path.
type fixedBalance struct{ amount decimal.Decimal }

func (f fixedBalance) AvailableBalanceUSDC() decimal.Decimal { return f.amount }

// memPositionTracker tracks per-market exposure in memory, incremented
// on every admitted signal. Exposure is never decremented.
type memPositionTracker struct {
	mu       sync.Mutex
	exposure map[string]decimal.Decimal
}

func newMemPositionTracker() *memPositionTracker {
	return &memPositionTracker{exposure: make(map[string]decimal.Decimal)}
}

func (t *memPositionTracker) CurrentExposure(marketID string) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exposure[marketID]
}

func (t *memPositionTracker) Add(marketID string, qty decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exposure[marketID] = t.exposure[marketID].Add(qty)
}

// telemetryRecorderSink adapts telemetry events into the ingestor's
// EventRecorder interface, so wire-level dedup/gap counters flow
// through the same bus as opportunity and fill events.
type telemetryRecorderSink struct {
	bus *telemetry.Bus
}

func (s telemetryRecorderSink) RecordReceived(tokenID, traceID string, ts time.Time) {
	s.bus.MarkStage(traceID, telemetry.StageWSReceived)
	s.bus.Emit(telemetry.EventReceived, traceID, map[string]any{"token_id": tokenID})
}

func (s telemetryRecorderSink) RecordSequenceGap(tokenID string) {
	s.bus.Emit(telemetry.EventReceived, "", map[string]any{"token_id": tokenID, "sequence_gap": true})
}

func (s telemetryRecorderSink) RecordDuplicate(tokenID string) {
	s.bus.Emit(telemetry.EventReceived, "", map[string]any{"token_id": tokenID, "duplicate": true})
}

// EngineMode runs the arbitrage engine end to end: wire feed ->
// book -> pair detector -> risk manager -> execution router -> pnl
// tracker, with telemetry and diagnostics wired throughout.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting engine mode", slog.Bool("dry_run", a.cfg.Engine.DryRun))

	g, ctx := errgroup.WithContext(ctx)
	eng := a.cfg.Engine

	recorder := telemetry.NewRecorder("data/events", 200, deps.BlobWriter, a.logger)
	bus := telemetry.NewBus(recorder, a.logger)
	g.Go(func() error { return recorder.Run(ctx, 10*time.Second) })

	store := book.New(eng.OrderbookDepthCap)
	ingestor := feed.NewIngestor(store, eng.DedupLRUSize, telemetryRecorderSink{bus: bus}, a.logger)
	adapter := feed.NewEngineAdapter(ingestor, a.logger)

	detector := arbitrage.NewPairDetector(store, decimal.NewFromFloat(eng.TradeSizeUSDC), a.logger)

	var assetIDs []string
	if deps.MarketStore != nil {
		pairs := a.discoverPairs(ctx, deps.MarketStore)
		for _, p := range pairs {
			detector.RegisterPair(p)
			assetIDs = append(assetIDs, p.YesTokenID, p.NoTokenID)
			ingestor.MarkSubscribed(p.YesTokenID)
			ingestor.MarkSubscribed(p.NoTokenID)
		}
		a.logger.InfoContext(ctx, "engine mode: registered market pairs", slog.Int("pairs", len(pairs)))
	}

	guard := risk.NewAnomalyGuard(risk.AnomalyConfig{
		Window:               time.Duration(eng.Anomaly.WindowSeconds) * time.Second,
		PulseThreshold:       eng.Anomaly.PulseThreshold,
		DepthThreshold:       eng.Anomaly.DepthThreshold,
		CorrelationThreshold: eng.Anomaly.CorrelationThreshold,
	})

	positions := newMemPositionTracker()
	tracker := pnl.NewTracker()

	cb := breaker.New("engine", breaker.Config{
		ConsecutiveFailuresThreshold: eng.CircuitBreaker.ConsecutiveFailuresThreshold,
		FailureRateThreshold:         eng.CircuitBreaker.FailureRateThreshold,
		RateWindowCalls:              eng.CircuitBreaker.RateWindowCalls,
		OpenTimeout:                  time.Duration(eng.CircuitBreaker.OpenTimeoutSeconds) * time.Second,
		HalfOpenMaxCalls:             eng.CircuitBreaker.HalfOpenMaxCalls,
		GasCostThreshold:             eng.CircuitBreaker.GasCostThreshold,
	})

	// Dial the RPC endpoint and derive the wallet signer up front: both
	// the gas oracle and the on-chain USDC balance poller below need
	// them before the risk manager can be constructed.
	var ethSrc *chainops.EthClientSource
	if a.cfg.Polymarket.RPCUrl != "" {
		src, err := chainops.DialEthClientSource(ctx, a.cfg.Polymarket.RPCUrl)
		if err != nil {
			a.logger.WarnContext(ctx, "engine mode: rpc dial failed, gas oracle and on-chain balance disabled", slog.String("error", err.Error()))
		} else {
			ethSrc = src
		}
	}

	var signer *crypto.Signer
	if a.cfg.Wallet.PrivateKey != "" {
		s, err := crypto.NewSigner(a.cfg.Wallet.PrivateKey, a.cfg.Polymarket.ChainID)
		if err != nil {
			a.logger.WarnContext(ctx, "engine mode: signer unavailable, live path falls back to simulation", slog.String("error", err.Error()))
		} else {
			signer = s
		}
	}

	// Balance source: poll the wallet's real USDC balance when a wallet
	// and RPC endpoint are both configured; otherwise fall back to the
	// configured simulated-balance ceiling, since a dry-run/simulated
	// deployment has no wallet to poll. See DESIGN.md's Open Question
	// decisions.
	var balanceSrc risk.BalanceSource = fixedBalance{amount: decimal.NewFromFloat(eng.SimulatedBalanceUSDC)}
	if ethSrc != nil && signer != nil {
		poller := chainops.NewBalancePoller(ethSrc, signer.Address().Hex(), a.cfg.Polymarket.USDCAddress, a.logger)
		if err := poller.Refresh(ctx); err != nil {
			a.logger.WarnContext(ctx, "engine mode: initial usdc balance fetch failed, starting from zero", slog.String("error", err.Error()))
		}
		balanceSrc = poller
		g.Go(func() error {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := poller.Refresh(ctx); err != nil {
						a.logger.WarnContext(ctx, "engine mode: usdc balance refresh failed", slog.String("error", err.Error()))
					}
				}
			}
		})
	}

	riskCfg := risk.ManagerConfig{
		MaxPositionSize:   decimal.NewFromFloat(eng.MaxPositionSize),
		MaxDailyLoss:      decimal.NewFromFloat(eng.MaxDailyLoss),
		IdempotencyWindow: time.Duration(eng.IdempotencyWindowMs) * time.Millisecond,
	}
	riskMgr := risk.NewManager(riskCfg, balanceSrc, positions, tracker, guard, cb, a.logger)

	edgeCfg := risk.EdgeConfig{
		FeeRate:               decimal.NewFromFloat(eng.FeeRate),
		SlippageBps:           decimal.NewFromFloat(eng.MaxSlippageBps),
		LatencyBps:            decimal.NewFromFloat(eng.LatencyBufferBps),
		LatencyBufferMax:      decimal.NewFromInt(1),
		MinProfitThresholdPct: decimal.NewFromFloat(eng.MinProfitThresholdPct),
		MinProfitThresholdAbs: decimal.NewFromFloat(eng.MinProfitThresholdAbs),
		MaxGasCostUSDC:        decimal.NewFromFloat(eng.MaxGasCostUSDC),
	}

	var gasOracle risk.GasOracle
	if ethSrc != nil {
		gasOracle = chainops.NewGasOracle(chainops.DefaultGasOracleConfig(), ethSrc, nil, a.logger)
	}
	edgeCalc := risk.NewEdgeCalculator(edgeCfg, gasOracle, a.logger)

	idemRegistry := idempotency.NewRegistry(eng.DedupLRUSize, time.Duration(eng.IdempotencyWindowMs)*time.Millisecond+5*time.Minute, nil)

	simExec := executor.NewSimulatedExecutor(store, decimal.NewFromFloat(eng.FeeRate), decimal.NewFromFloat(eng.MaxSlippageBps), a.logger)

	var liveExec executor.SignalExecutor = simExec
	var nonces *chainops.NonceManager
	if signer != nil && ethSrc != nil {
		nonces = chainops.New(ethSrc, signer.Address().Hex(), a.logger)
		if err := nonces.Initialize(ctx); err != nil {
			a.logger.WarnContext(ctx, "engine mode: nonce manager init failed, live path falls back to simulation", slog.String("error", err.Error()))
		} else {
			clobClient := polymarket.NewClobClient(a.cfg.Polymarket.ClobHost, signer, nil)
			if err := clobClient.DeriveAPIKey(ctx); err != nil {
				a.logger.WarnContext(ctx, "engine mode: derive api key failed, live path falls back to simulation", slog.String("error", err.Error()))
			} else {
				submitter := executor.NewClobSubmitter(clobClient, signer)
				retryCfg := retry.Config{
					MaxRetries: eng.Retry.MaxRetries,
					BaseDelay:  time.Duration(eng.Retry.BaseDelayMs) * time.Millisecond,
					MaxDelay:   time.Duration(eng.Retry.MaxDelayMs) * time.Millisecond,
					Multiplier: eng.Retry.Multiplier,
					JitterMin:  eng.Retry.JitterMin,
					JitterMax:  eng.Retry.JitterMax,
				}
				liveExec = executor.NewLiveExecutor(submitter, nonces, cb, idemRegistry, retryCfg, a.logger)
			}
		}
	}
	router := executor.NewRouter(simExec, liveExec, eng.DryRun, a.logger)

	collector := diagnostics.NewCollector(cb, nonces, idemRegistry, tracker)
	g.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				snap := collector.Collect()
				a.logger.InfoContext(ctx, "engine diagnostics",
					slog.String("circuit_state", string(snap.Circuit.State)),
					slog.Int("idempotency_hot_tier", snap.Idempotency.HotTierSize),
					slog.String("cumulative_realized_pnl", snap.PnL.CumulativeRealizedPnL.String()),
				)
			}
		}
	})

	store.OnUpdate(func(tokenID string) {
		if pair, ok := detector.PairForToken(tokenID); ok {
			if price, depth, complement, ok := detector.Sample(pair); ok {
				guard.Observe(pair.MarketID, price, depth, complement)
			}
		}

		opp, err := detector.OnTokenUpdate(tokenID)
		if err != nil || opp == nil {
			return
		}
		bus.MarkStage(opp.TraceID, telemetry.StageBookApplied)
		edge := edgeCalc.Evaluate(*opp)
		sig, reject := riskMgr.Evaluate(*opp, edge)
		if reject != "" {
			bus.Emit(telemetry.EventRiskPassed, opp.TraceID, map[string]any{"rejected": string(reject)})
			return
		}
		bus.MarkStage(sig.TraceID, telemetry.StageRiskDecided)
		bus.Emit(telemetry.EventOpportunityFound, sig.TraceID, map[string]any{
			"market_id":  opp.Pair.MarketID,
			"gross_edge": opp.ExpectedProfitPerUnit.String(),
		})
		tracker.RecordExpectedEdge(edge.NetEdge)
		positions.Add(opp.Pair.MarketID, sig.AdmittedQty)

		res, execErr := router.Route(ctx, sig)
		if execErr != nil {
			a.logger.WarnContext(ctx, "engine mode: execution failed", slog.String("error", execErr.Error()), slog.String("trace_id", sig.TraceID))
			return
		}
		bus.MarkStage(sig.TraceID, telemetry.StageOrderSent)
		bus.Emit(telemetry.EventOrderSubmitted, sig.TraceID, map[string]any{"status": string(res.Status)})
		if res.YesFill != nil {
			tracker.RecordFill(*res.YesFill)
			bus.Emit(telemetry.EventFillObserved, sig.TraceID, map[string]any{"side": "yes"})
		}
		if res.NoFill != nil {
			tracker.RecordFill(*res.NoFill)
			bus.Emit(telemetry.EventFillObserved, sig.TraceID, map[string]any{"side": "no"})
		}
		if res.Status == domain.TxStatusPartial {
			riskMgr.SuppressPair(opp.Pair.MarketID, time.Now().UTC().Add(10*time.Minute))
		}
		bus.Forget(sig.TraceID)
	})

	if len(assetIDs) > 0 && a.cfg.Polymarket.WsHost != "" {
		wsFeed := feed.NewPolymarketWSFeed(a.cfg.Polymarket.WsHost, assetIDs, adapter.OnBookUpdate, adapter.OnPriceChange, a.logger)
		g.Go(func() error {
			defer wsFeed.Close()
			return wsFeed.Run(ctx)
		})
	} else {
		a.logger.WarnContext(ctx, "engine mode: no market pairs to watch, feed idle")
	}

	if ethSrc != nil {
		g.Go(func() error {
			<-ctx.Done()
			ethSrc.Close()
			return nil
		})
	}

	return g.Wait()
}

// discoverPairs groups active markets' two outcome tokens into
// MarketPairs suitable for yes/no arbitrage detection. Grouping is
// delegated to MarketGrouper so the same two-outcome/resolved/YES-NO
// label checks gate both this and any future discovery path.
func (a *App) discoverPairs(ctx context.Context, store domain.MarketStore) []domain.MarketPair {
	markets, err := store.ListActive(ctx, domain.ListOpts{Limit: 500})
	if err != nil {
		a.logger.WarnContext(ctx, "discover pairs: list active failed", slog.String("error", err.Error()))
		return nil
	}
	raw := make([]arbitrage.RawMarket, 0, len(markets))
	for _, m := range markets {
		raw = append(raw, arbitrage.RawMarket{
			MarketID: m.ID,
			Question: m.Question,
			EndDate:  m.UpdatedAt,
			Resolved: m.Status == domain.MarketStatusSettled,
			Outcomes: []arbitrage.RawOutcome{
				{TokenID: m.TokenIDs[0], Label: m.Outcomes[0]},
				{TokenID: m.TokenIDs[1], Label: m.Outcomes[1]},
			},
		})
	}
	return arbitrage.NewMarketGrouper(a.logger).GroupAll(raw)
}
