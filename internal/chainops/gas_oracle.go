package chainops

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// GasPriceSource is the chain client's suggested-gas-price query.
type GasPriceSource interface {
	SuggestGasPriceWei(ctx context.Context) (decimal.Decimal, error)
}

// NativePriceSource quotes the chain's native token in USD (e.g. a
// MATIC/USD feed), used to convert a wei-denominated gas cost into
// USDC for the edge calculator and risk manager.
type NativePriceSource interface {
	NativeUSDPrice(ctx context.Context) (decimal.Decimal, error)
}

// GasOracleConfig holds the per-transaction gas estimate and caching
// windows. Grounded on the reference adapter's 5-minute gas-price
// cache and 15-minute native-token-price cache.
type GasOracleConfig struct {
	GasLimitPerLeg   decimal.Decimal
	Legs             int
	GasPriceCacheTTL time.Duration
	PriceCacheTTL    time.Duration
	FallbackNativeUSD decimal.Decimal
}

// DefaultGasOracleConfig mirrors the reference adapter's defaults.
func DefaultGasOracleConfig() GasOracleConfig {
	return GasOracleConfig{
		GasLimitPerLeg:    decimal.NewFromInt(150000),
		Legs:              2,
		GasPriceCacheTTL:  5 * time.Minute,
		PriceCacheTTL:     15 * time.Minute,
		FallbackNativeUSD: decimal.RequireFromString("0.50"),
	}
}

// GasOracle converts current network gas price and native-token price
// into a USDC estimate for a two-leg submission, satisfying the risk
// package's GasOracle interface. Both underlying quotes are cached to
// bound RPC/HTTP call volume.
type GasOracle struct {
	cfg   GasOracleConfig
	gas   GasPriceSource
	price NativePriceSource
	log   *slog.Logger

	mu            sync.Mutex
	gasPriceWei   decimal.Decimal
	gasPriceAt    time.Time
	nativeUSD     decimal.Decimal
	nativeUSDAt   time.Time
}

// NewGasOracle creates a GasOracle.
func NewGasOracle(cfg GasOracleConfig, gas GasPriceSource, price NativePriceSource, logger *slog.Logger) *GasOracle {
	return &GasOracle{cfg: cfg, gas: gas, price: price, log: logger.With(slog.String("component", "gas_oracle"))}
}

// EstimateGasCostUSDC implements risk.GasOracle.
func (g *GasOracle) EstimateGasCostUSDC() (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	gasPriceWei, err := g.gasPrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	nativeUSD := g.nativePrice(ctx)

	totalGasUnits := g.cfg.GasLimitPerLeg.Mul(decimal.NewFromInt(int64(g.cfg.Legs)))
	weiCost := gasPriceWei.Mul(totalGasUnits)
	nativeCost := weiCost.Div(decimal.NewFromInt(1e18))
	return nativeCost.Mul(nativeUSD).Round(6), nil
}

func (g *GasOracle) gasPrice(ctx context.Context) (decimal.Decimal, error) {
	g.mu.Lock()
	if !g.gasPriceAt.IsZero() && time.Since(g.gasPriceAt) < g.cfg.GasPriceCacheTTL {
		v := g.gasPriceWei
		g.mu.Unlock()
		return v, nil
	}
	g.mu.Unlock()

	raw, err := g.gas.SuggestGasPriceWei(ctx)
	if err != nil {
		g.mu.Lock()
		cached := g.gasPriceWei
		hasCache := !g.gasPriceAt.IsZero()
		g.mu.Unlock()
		if hasCache {
			g.log.Warn("gas price refresh failed, using stale cache", slog.String("error", err.Error()))
			return cached, nil
		}
		return decimal.Zero, err
	}

	// 10% buffer, matching the reference adapter.
	buffered := raw.Mul(decimal.RequireFromString("1.1"))

	g.mu.Lock()
	g.gasPriceWei = buffered
	g.gasPriceAt = time.Now().UTC()
	g.mu.Unlock()
	return buffered, nil
}

func (g *GasOracle) nativePrice(ctx context.Context) decimal.Decimal {
	g.mu.Lock()
	if !g.nativeUSDAt.IsZero() && time.Since(g.nativeUSDAt) < g.cfg.PriceCacheTTL {
		v := g.nativeUSD
		g.mu.Unlock()
		return v
	}
	g.mu.Unlock()

	if g.price == nil {
		return g.cfg.FallbackNativeUSD
	}
	v, err := g.price.NativeUSDPrice(ctx)
	if err != nil || !v.IsPositive() {
		g.log.Warn("native price fetch failed, using fallback", slog.String("error", errString(err)))
		return g.cfg.FallbackNativeUSD
	}

	g.mu.Lock()
	g.nativeUSD = v
	g.nativeUSDAt = time.Now().UTC()
	g.mu.Unlock()
	return v
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
