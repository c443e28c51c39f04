package chainops

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// erc20BalanceOfSelector is the first 4 bytes of keccak256("balanceOf(address)").
var erc20BalanceOfSelector = crypto.Keccak256([]byte("balanceOf(address)"))[:4]

// usdcDecimals is USDC's on-chain decimal precision (6), used to convert
// the raw uint256 balanceOf result into a display-scale decimal.
const usdcDecimals = 6

// EthClientSource wraps a go-ethereum RPC client to satisfy both
// NonceSource and GasPriceSource, so the same Polygon RPC endpoint
// feeds the nonce manager and the gas oracle.
type EthClientSource struct {
	client *ethclient.Client
}

// DialEthClientSource connects to the given RPC endpoint (HTTP or WS).
func DialEthClientSource(ctx context.Context, rpcURL string) (*EthClientSource, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chainops: dial rpc: %w", err)
	}
	return &EthClientSource{client: client}, nil
}

// PendingNonceAt implements NonceSource.
func (e *EthClientSource) PendingNonceAt(ctx context.Context, address string) (uint64, error) {
	return e.client.PendingNonceAt(ctx, common.HexToAddress(address))
}

// SuggestGasPriceWei implements GasPriceSource.
func (e *EthClientSource) SuggestGasPriceWei(ctx context.Context) (decimal.Decimal, error) {
	price, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("chainops: suggest gas price: %w", err)
	}
	return decimal.NewFromBigInt(price, 0), nil
}

// USDCBalance reads the wallet's USDC balance from the given ERC20
// contract via an eth_call to balanceOf(address), matching the
// reference adapter's USDC balance-check contract call. The result is
// scaled from USDC's 6-decimal raw units to a display-scale decimal.
func (e *EthClientSource) USDCBalance(ctx context.Context, walletAddress, usdcContractAddress string) (decimal.Decimal, error) {
	data := make([]byte, 0, 36)
	data = append(data, erc20BalanceOfSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(walletAddress).Bytes(), 32)...)

	to := common.HexToAddress(usdcContractAddress)
	result, err := e.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("chainops: usdc balanceOf: %w", err)
	}
	raw := new(big.Int).SetBytes(result)
	return decimal.NewFromBigInt(raw, -usdcDecimals), nil
}

// Close releases the underlying RPC connection.
func (e *EthClientSource) Close() {
	e.client.Close()
}
