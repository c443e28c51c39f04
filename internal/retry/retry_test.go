package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClassifyRetryable(t *testing.T) {
	cases := []string{"connection timeout", "nonce too low", "replacement underpriced", "rpc error: 503"}
	for _, msg := range cases {
		if Classify(errors.New(msg)) != Retryable {
			t.Fatalf("expected %q classified retryable", msg)
		}
	}
}

func TestClassifyNonRetryable(t *testing.T) {
	cases := []string{"insufficient funds for gas", "execution reverted", "invalid address"}
	for _, msg := range cases {
		if Classify(errors.New(msg)) != NonRetryable {
			t.Fatalf("expected %q classified non-retryable", msg)
		}
	}
}

// no signal causes more than max_retries+1 total attempts.
func TestDoRetryBound(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond

	calls := 0
	attempts, err := Do(context.Background(), cfg, func(attempt int) error {
		calls++
		return errors.New("connection timeout")
	})
	if err != ErrExhausted {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if attempts != cfg.MaxRetries+1 {
		t.Fatalf("expected %d attempts, got %d", cfg.MaxRetries+1, attempts)
	}
	if calls != cfg.MaxRetries+1 {
		t.Fatalf("expected %d calls, got %d", cfg.MaxRetries+1, calls)
	}
}

func TestDoStopsImmediatelyOnNonRetryable(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), DefaultConfig(), func(attempt int) error {
		calls++
		return errors.New("execution reverted")
	})
	if attempts != 1 || calls != 1 {
		t.Fatalf("expected exactly 1 attempt for non-retryable error, got %d", attempts)
	}
	if err == nil {
		t.Fatal("expected error returned")
	}
}

func TestDoSucceedsOnRetry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond

	calls := 0
	_, err := Do(context.Background(), cfg, func(attempt int) error {
		calls++
		if calls < 2 {
			return errors.New("connection timeout")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDelayRespectsCapAndJitterBounds(t *testing.T) {
	cfg := DefaultConfig()
	for attempt := 1; attempt <= 10; attempt++ {
		d := cfg.Delay(attempt)
		max := time.Duration(float64(cfg.MaxDelay) * cfg.JitterMax)
		if d > max {
			t.Fatalf("attempt %d: delay %v exceeds max %v", attempt, d, max)
		}
	}
}
