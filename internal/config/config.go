// Package config defines the top-level configuration for the arbitrage
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYBOT_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Builder    BuilderConfig    `toml:"builder"`
	Supabase   SupabaseConfig   `toml:"supabase"`
	S3         S3Config         `toml:"s3"`
	Engine     EngineConfig     `toml:"engine"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// EngineConfig holds the prediction-market arbitrage engine's tuning
// parameters: trade sizing, edge thresholds, risk limits, feed and
// book bounds, and the nested breaker/retry/anomaly policies.
type EngineConfig struct {
	DryRun                bool    `toml:"dry_run"`
	TradeSizeUSDC         float64 `toml:"trade_size"`
	MinProfitThresholdPct float64 `toml:"min_profit_threshold_pct"`
	MinProfitThresholdAbs float64 `toml:"min_profit_threshold_abs"`
	MaxPositionSize       float64 `toml:"max_position_size"`
	MaxDailyLoss          float64 `toml:"max_daily_loss"`
	MaxSlippageBps        float64 `toml:"max_slippage_bps"`
	FeeRate               float64 `toml:"fee_rate"`
	LatencyBufferBps      float64 `toml:"latency_buffer_bps"`
	MaxGasCostUSDC        float64 `toml:"max_gas_cost_usdc"`
	MaxGasPriceGwei       float64 `toml:"max_gas_price"`
	// SimulatedBalanceUSDC stands in for risk.BalanceSource when no
	// wallet/RPC is configured to poll a real on-chain USDC balance
	// (dry-run or simulated-only deployments). It is never used once a
	// wallet private key and RPC URL are both present.
	SimulatedBalanceUSDC  float64 `toml:"simulated_balance_usdc"`
	IdempotencyWindowMs   int64   `toml:"idempotency_window_ms"`
	OrderbookDepthCap     int     `toml:"orderbook_depth_cap"`
	DedupLRUSize          int     `toml:"dedup_lru_size"`
	WSBackoffInitialMs    int64   `toml:"ws_backoff_initial_ms"`
	WSBackoffMaxMs        int64   `toml:"ws_backoff_max_ms"`

	CircuitBreaker CircuitBreakerConfig `toml:"circuit_breaker"`
	Retry          RetryConfig          `toml:"retry"`
	Anomaly        AnomalyConfig        `toml:"anomaly"`
}

// CircuitBreakerConfig holds the live executor's circuit breaker
// thresholds.
type CircuitBreakerConfig struct {
	ConsecutiveFailuresThreshold int     `toml:"consecutive_failures_threshold"`
	FailureRateThreshold         float64 `toml:"failure_rate_threshold"`
	RateWindowCalls              int     `toml:"rate_window_calls"`
	OpenTimeoutSeconds           int     `toml:"open_timeout_seconds"`
	HalfOpenMaxCalls             int     `toml:"half_open_max_calls"`
	GasCostThreshold             float64 `toml:"gas_cost_threshold"`
}

// RetryConfig holds the live executor's backoff-with-jitter schedule.
type RetryConfig struct {
	MaxRetries  int     `toml:"max_retries"`
	BaseDelayMs int64   `toml:"base_delay_ms"`
	MaxDelayMs  int64   `toml:"max_delay_ms"`
	Multiplier  float64 `toml:"multiplier"`
	JitterMin   float64 `toml:"jitter_min"`
	JitterMax   float64 `toml:"jitter_max"`
}

// AnomalyConfig holds the anomaly guard's sampling window and severity
// thresholds.
type AnomalyConfig struct {
	WindowSeconds        int     `toml:"window_seconds"`
	PulseThreshold       float64 `toml:"pulse_threshold"`
	DepthThreshold       float64 `toml:"depth_threshold"`
	CorrelationThreshold float64 `toml:"correlation_threshold"`
}

// WalletConfig holds Ethereum wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	SafeAddress      string `toml:"safe_address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds Polymarket API endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost      string `toml:"clob_host"`
	GammaHost     string `toml:"gamma_host"`
	WsHost        string `toml:"ws_host"`
	RPCUrl        string `toml:"rpc_url"`
	ChainID       int    `toml:"chain_id"`
	SignatureType int    `toml:"signature_type"`
	USDCAddress   string `toml:"usdc_address"`
}

// BuilderConfig holds Polymarket builder-program API credentials.
type BuilderConfig struct {
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	ApiURL        string `toml:"api_url"`
	ApiKey        string `toml:"api_key"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// Defaults returns a Config populated with reasonable default values.
// Load decodes the TOML file on top of these.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:      "https://clob.polymarket.com",
			GammaHost:     "https://gamma-api.polymarket.com",
			WsHost:        "wss://ws-subscriptions-clob.polymarket.com",
			RPCUrl:        "https://polygon-rpc.com",
			ChainID:       137,
			SignatureType: 2,
			USDCAddress:   "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
		},
		Supabase: SupabaseConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polybot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Engine: EngineConfig{
			DryRun:                true,
			TradeSizeUSDC:         10.0,
			MinProfitThresholdPct: 0.001,
			MinProfitThresholdAbs: 0.01,
			MaxPositionSize:       1000.0,
			MaxDailyLoss:          100.0,
			MaxSlippageBps:        5,
			FeeRate:               0.0035,
			LatencyBufferBps:      2,
			MaxGasCostUSDC:        2.0,
			MaxGasPriceGwei:       500,
			SimulatedBalanceUSDC:  100_000.0,
			IdempotencyWindowMs:   60_000,
			OrderbookDepthCap:     50,
			DedupLRUSize:          10_000,
			WSBackoffInitialMs:    1_000,
			WSBackoffMaxMs:        30_000,
			CircuitBreaker: CircuitBreakerConfig{
				ConsecutiveFailuresThreshold: 3,
				FailureRateThreshold:         0.5,
				RateWindowCalls:              20,
				OpenTimeoutSeconds:           60,
				HalfOpenMaxCalls:             3,
				GasCostThreshold:             2.0,
			},
			Retry: RetryConfig{
				MaxRetries:  3,
				BaseDelayMs: 1_000,
				MaxDelayMs:  30_000,
				Multiplier:  2,
				JitterMin:   0.5,
				JitterMax:   1.5,
			},
			Anomaly: AnomalyConfig{
				WindowSeconds:        60,
				PulseThreshold:       0.15,
				DepthThreshold:       0.5,
				CorrelationThreshold: 0.1,
			},
		},
		Mode:     "engine",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"engine": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: engine)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet — optional; absent, the engine runs in simulated-only mode
	// rather than erroring at startup.
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Polymarket endpoints
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}
	if c.Polymarket.SignatureType != 1 && c.Polymarket.SignatureType != 2 {
		errs = append(errs, fmt.Sprintf("polymarket: signature_type must be 1 (EOA) or 2 (Safe), got %d", c.Polymarket.SignatureType))
	}

	// Builder — all three fields must be set together, or all empty.
	bk := c.Builder.ApiKey != ""
	bs := c.Builder.ApiSecret != ""
	bp := c.Builder.ApiPassphrase != ""
	if bk || bs || bp {
		if !(bk && bs && bp) {
			errs = append(errs, "builder: api_key, api_secret, and api_passphrase must all be set together")
		}
	}

	// Supabase
	if strings.TrimSpace(c.Supabase.DSN) == "" {
		if c.Supabase.Host == "" {
			errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
		}
		if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
			errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
		}
		if c.Supabase.Database == "" {
			errs = append(errs, "supabase: database must not be empty")
		}
	}
	if c.Supabase.PoolMaxConns < 1 {
		errs = append(errs, "supabase: pool_max_conns must be >= 1")
	}
	if c.Supabase.PoolMinConns < 0 {
		errs = append(errs, "supabase: pool_min_conns must be >= 0")
	}
	if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
		errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
	}

	// S3
	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Engine
	if c.Engine.TradeSizeUSDC <= 0 {
		errs = append(errs, "engine: trade_size must be > 0")
	}
	if c.Engine.MaxPositionSize <= 0 {
		errs = append(errs, "engine: max_position_size must be > 0")
	}
	if c.Engine.MaxDailyLoss <= 0 {
		errs = append(errs, "engine: max_daily_loss must be > 0")
	}
	if c.Engine.OrderbookDepthCap <= 0 {
		errs = append(errs, "engine: orderbook_depth_cap must be > 0")
	}
	if c.Engine.DedupLRUSize < 1000 {
		errs = append(errs, "engine: dedup_lru_size must be >= 1000")
	}
	if c.Engine.CircuitBreaker.ConsecutiveFailuresThreshold < 1 {
		errs = append(errs, "engine.circuit_breaker: consecutive_failures_threshold must be >= 1")
	}
	if c.Engine.Retry.MaxRetries < 0 {
		errs = append(errs, "engine.retry: max_retries must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
