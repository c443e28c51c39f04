package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "POLYBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.SafeAddress, "POLYBOT_WALLET_SAFE_ADDRESS")
	setStr(&cfg.Wallet.EncryptedKeyPath, "POLYBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "POLYBOT_WALLET_KEY_PASSWORD")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "POLYBOT_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYBOT_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "POLYBOT_POLYMARKET_WS_HOST")
	setStr(&cfg.Polymarket.RPCUrl, "POLYBOT_POLYMARKET_RPC_URL")
	setInt(&cfg.Polymarket.ChainID, "POLYBOT_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "POLYBOT_POLYMARKET_SIGNATURE_TYPE")
	setStr(&cfg.Polymarket.USDCAddress, "POLYBOT_POLYMARKET_USDC_ADDRESS")

	// ── Builder ──
	setStr(&cfg.Builder.ApiKey, "POLYBOT_BUILDER_API_KEY")
	setStr(&cfg.Builder.ApiSecret, "POLYBOT_BUILDER_API_SECRET")
	setStr(&cfg.Builder.ApiPassphrase, "POLYBOT_BUILDER_API_PASSPHRASE")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "POLYBOT_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "POLYBOT_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "POLYBOT_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "POLYBOT_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "POLYBOT_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "POLYBOT_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "POLYBOT_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "POLYBOT_SUPABASE_SSLMODE")
	setStr(&cfg.Supabase.SSLMode, "POLYBOT_SUPABASE_SSL_MODE") // compatibility alias
	setInt(&cfg.Supabase.PoolMaxConns, "POLYBOT_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "POLYBOT_SUPABASE_POOL_MIN_CONNS")
	setStr(&cfg.Supabase.ApiURL, "POLYBOT_SUPABASE_API_URL")
	setStr(&cfg.Supabase.ApiKey, "POLYBOT_SUPABASE_API_KEY")
	setBool(&cfg.Supabase.RunMigrations, "POLYBOT_SUPABASE_RUN_MIGRATIONS")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "POLYBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYBOT_S3_FORCE_PATH_STYLE")

	// ── Engine ──
	setBool(&cfg.Engine.DryRun, "POLYBOT_ENGINE_DRY_RUN")
	setFloat64(&cfg.Engine.TradeSizeUSDC, "POLYBOT_ENGINE_TRADE_SIZE")
	setFloat64(&cfg.Engine.MinProfitThresholdPct, "POLYBOT_ENGINE_MIN_PROFIT_THRESHOLD_PCT")
	setFloat64(&cfg.Engine.MinProfitThresholdAbs, "POLYBOT_ENGINE_MIN_PROFIT_THRESHOLD_ABS")
	setFloat64(&cfg.Engine.MaxPositionSize, "POLYBOT_ENGINE_MAX_POSITION_SIZE")
	setFloat64(&cfg.Engine.MaxDailyLoss, "POLYBOT_ENGINE_MAX_DAILY_LOSS")
	setFloat64(&cfg.Engine.MaxSlippageBps, "POLYBOT_ENGINE_MAX_SLIPPAGE_BPS")
	setFloat64(&cfg.Engine.FeeRate, "POLYBOT_ENGINE_FEE_RATE")
	setFloat64(&cfg.Engine.LatencyBufferBps, "POLYBOT_ENGINE_LATENCY_BUFFER_BPS")
	setFloat64(&cfg.Engine.MaxGasCostUSDC, "POLYBOT_ENGINE_MAX_GAS_COST_USDC")
	setFloat64(&cfg.Engine.MaxGasPriceGwei, "POLYBOT_ENGINE_MAX_GAS_PRICE")
	setFloat64(&cfg.Engine.SimulatedBalanceUSDC, "POLYBOT_ENGINE_SIMULATED_BALANCE_USDC")
	setInt64(&cfg.Engine.IdempotencyWindowMs, "POLYBOT_ENGINE_IDEMPOTENCY_WINDOW_MS")
	setInt(&cfg.Engine.OrderbookDepthCap, "POLYBOT_ENGINE_ORDERBOOK_DEPTH_CAP")
	setInt(&cfg.Engine.DedupLRUSize, "POLYBOT_ENGINE_DEDUP_LRU_SIZE")
	setInt64(&cfg.Engine.WSBackoffInitialMs, "POLYBOT_ENGINE_WS_BACKOFF_INITIAL_MS")
	setInt64(&cfg.Engine.WSBackoffMaxMs, "POLYBOT_ENGINE_WS_BACKOFF_MAX_MS")

	setInt(&cfg.Engine.CircuitBreaker.ConsecutiveFailuresThreshold, "POLYBOT_ENGINE_CIRCUIT_BREAKER_CONSECUTIVE_FAILURES_THRESHOLD")
	setFloat64(&cfg.Engine.CircuitBreaker.FailureRateThreshold, "POLYBOT_ENGINE_CIRCUIT_BREAKER_FAILURE_RATE_THRESHOLD")
	setInt(&cfg.Engine.CircuitBreaker.RateWindowCalls, "POLYBOT_ENGINE_CIRCUIT_BREAKER_RATE_WINDOW_CALLS")
	setInt(&cfg.Engine.CircuitBreaker.OpenTimeoutSeconds, "POLYBOT_ENGINE_CIRCUIT_BREAKER_OPEN_TIMEOUT_SECONDS")
	setInt(&cfg.Engine.CircuitBreaker.HalfOpenMaxCalls, "POLYBOT_ENGINE_CIRCUIT_BREAKER_HALF_OPEN_MAX_CALLS")
	setFloat64(&cfg.Engine.CircuitBreaker.GasCostThreshold, "POLYBOT_ENGINE_CIRCUIT_BREAKER_GAS_COST_THRESHOLD")

	setInt(&cfg.Engine.Retry.MaxRetries, "POLYBOT_ENGINE_RETRY_MAX_RETRIES")
	setInt64(&cfg.Engine.Retry.BaseDelayMs, "POLYBOT_ENGINE_RETRY_BASE_DELAY_MS")
	setInt64(&cfg.Engine.Retry.MaxDelayMs, "POLYBOT_ENGINE_RETRY_MAX_DELAY_MS")
	setFloat64(&cfg.Engine.Retry.Multiplier, "POLYBOT_ENGINE_RETRY_MULTIPLIER")
	setFloat64(&cfg.Engine.Retry.JitterMin, "POLYBOT_ENGINE_RETRY_JITTER_MIN")
	setFloat64(&cfg.Engine.Retry.JitterMax, "POLYBOT_ENGINE_RETRY_JITTER_MAX")

	setInt(&cfg.Engine.Anomaly.WindowSeconds, "POLYBOT_ENGINE_ANOMALY_WINDOW_SECONDS")
	setFloat64(&cfg.Engine.Anomaly.PulseThreshold, "POLYBOT_ENGINE_ANOMALY_PULSE_THRESHOLD")
	setFloat64(&cfg.Engine.Anomaly.DepthThreshold, "POLYBOT_ENGINE_ANOMALY_DEPTH_THRESHOLD")
	setFloat64(&cfg.Engine.Anomaly.CorrelationThreshold, "POLYBOT_ENGINE_ANOMALY_CORRELATION_THRESHOLD")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYBOT_MODE")
	setStr(&cfg.LogLevel, "POLYBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

