// Package retry implements the exponential-backoff-with-jitter retry
// policy and error classification used by the live executor.
// Generalizes the executor's single-retry stub into a bounded,
// classified schedule.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Classification is the disjoint error-kind taxonomy the policy
// dispatches retry decisions on.
type Classification int

const (
	NonRetryable Classification = iota
	Retryable
)

// Config holds the backoff schedule's parameters.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	JitterMin  float64
	JitterMax  float64
}

// DefaultConfig mirrors the source defaults: 3 retries, 1s base, 30s
// cap, multiplier 2, jitter in [0.5, 1.5).
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2,
		JitterMin:  0.5,
		JitterMax:  1.5,
	}
}

var retryableSubstrings = []string{
	"timeout",
	"connection reset",
	"connection refused",
	"i/o timeout",
	"rpc error",
	"nonce too low",
	"replacement underpriced",
	"gas required exceeds allowance",
	"502", "503", "504",
}

var nonRetryableSubstrings = []string{
	"insufficient funds",
	"invalid address",
	"revert",
	"execution reverted",
	"unauthorized",
	"authorization failed",
}

// Classify inspects an error and decides whether the caller should
// retry. Non-retryable takes precedence when both sets of substrings
// somehow match (defensive; the two lists are disjoint by
// construction).
func Classify(err error) Classification {
	if err == nil {
		return NonRetryable
	}
	msg := strings.ToLower(err.Error())
	for _, s := range nonRetryableSubstrings {
		if strings.Contains(msg, s) {
			return NonRetryable
		}
	}
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return Retryable
		}
	}
	return NonRetryable
}

// Delay computes the backoff delay for attempt k (1-indexed):
// min(max_delay, base_delay * multiplier^(k-1)) * jitter, jitter
// uniformly sampled from [JitterMin, JitterMax).
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	raw := float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt-1))
	capped := math.Min(raw, float64(c.MaxDelay))
	jitter := c.JitterMin + rand.Float64()*(c.JitterMax-c.JitterMin)
	return time.Duration(capped * jitter)
}

// ErrExhausted is returned by Do when the operation never succeeded
// and ran out of retry budget.
var ErrExhausted = errors.New("retry budget exhausted")

// Do runs fn, retrying on Retryable errors per the configured
// schedule, up to MaxRetries additional attempts (MaxRetries+1 total
// attempts — satisfies the retry-bound property). It stops
// immediately on a NonRetryable error or context cancellation.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) (attempts int, err error) {
	for attempt := 1; ; attempt++ {
		attempts = attempt
		err = fn(attempt)
		if err == nil {
			return attempts, nil
		}
		if Classify(err) != Retryable {
			return attempts, err
		}
		if attempt > cfg.MaxRetries {
			return attempts, ErrExhausted
		}
		select {
		case <-ctx.Done():
			return attempts, ctx.Err()
		case <-time.After(cfg.Delay(attempt)):
		}
	}
}
