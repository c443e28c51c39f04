package chainops

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// USDCBalanceFetcher is the chain client's USDC balance query.
type USDCBalanceFetcher interface {
	USDCBalance(ctx context.Context, walletAddress, usdcContractAddress string) (decimal.Decimal, error)
}

// BalancePoller satisfies risk.BalanceSource with a periodically
// refreshed on-chain USDC balance. The risk manager's pre-trade check
// reads the cached value synchronously rather than blocking on an RPC
// round trip for every candidate opportunity.
type BalancePoller struct {
	fetcher       USDCBalanceFetcher
	walletAddress string
	usdcAddress   string
	log           *slog.Logger

	mu        sync.Mutex
	balance   decimal.Decimal
	fetchedAt time.Time
}

// NewBalancePoller creates a BalancePoller. Refresh must be called at
// least once (e.g. at startup) before AvailableBalanceUSDC reports a
// real value; until then it reports zero.
func NewBalancePoller(fetcher USDCBalanceFetcher, walletAddress, usdcAddress string, logger *slog.Logger) *BalancePoller {
	return &BalancePoller{
		fetcher:       fetcher,
		walletAddress: walletAddress,
		usdcAddress:   usdcAddress,
		log:           logger.With(slog.String("component", "balance_poller")),
	}
}

// Refresh re-queries the chain and updates the cached balance. On
// failure the prior cached value is kept and the error is returned for
// the caller to log/decide on.
func (p *BalancePoller) Refresh(ctx context.Context) error {
	bal, err := p.fetcher.USDCBalance(ctx, p.walletAddress, p.usdcAddress)
	if err != nil {
		return fmt.Errorf("chainops: refresh usdc balance: %w", err)
	}
	p.mu.Lock()
	p.balance = bal
	p.fetchedAt = time.Now().UTC()
	p.mu.Unlock()
	return nil
}

// AvailableBalanceUSDC implements risk.BalanceSource.
func (p *BalancePoller) AvailableBalanceUSDC() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance
}
