package ingest

import (
	"context"
	"time"
)

// ReconnectConfig contains configuration for exponential backoff between
// failed FIFO opens. There is no retry limit: the writer may appear at any time.
type ReconnectConfig struct {
	RetryDelay    time.Duration // Initial retry delay (default: 100ms)
	MaxRetryDelay time.Duration // Maximum retry delay cap (default: 5 seconds)
}

// DefaultReconnectConfig returns default reconnection configuration
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		RetryDelay:    100 * time.Millisecond,
		MaxRetryDelay: 5 * time.Second,
	}
}

// maxBackoffShift keeps 1<<shift well inside int64 nanoseconds.
const maxBackoffShift = 30

// calculateBackoff calculates the exponential backoff delay for a given attempt
//
// Formula: delay = retryDelay * 2^(attempt-1)
// Cap: min(delay, maxRetryDelay)
//
// Example with default config (retryDelay=100ms, maxRetryDelay=5s):
//   - Attempt 1: 100ms
//   - Attempt 2: 200ms
//   - Attempt 3: 400ms
//   - Attempt 7+: 5s
func calculateBackoff(attempt int, cfg ReconnectConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}

	delay := cfg.RetryDelay * time.Duration(1<<uint(shift))
	if delay > cfg.MaxRetryDelay || delay <= 0 {
		delay = cfg.MaxRetryDelay
	}
	return delay
}

// waitBackoff sleeps for d or until ctx is cancelled.
func waitBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
