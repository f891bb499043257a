package classify

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/pixelsense/pixelsense/internal/providers"
)

// RetryConfig holds retry configuration for provider calls
type RetryConfig struct {
	MaxAttempts       int           // Attempts for rate-limit/transient failures (default: 3)
	MalformedAttempts int           // Attempts for malformed responses (default: 2)
	BaseDelay         time.Duration // First backoff duration (default: 1s)
	MaxDelay          time.Duration // Backoff cap (default: 30s)
	CallTimeout       time.Duration // Wall-clock timeout per attempt (default: 60s)

	// OnBackoff, if set, observes each backoff sleep. Used for
	// progress reporting and by tests.
	OnBackoff func(attempt int, delay time.Duration)
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		MalformedAttempts: 2,
		BaseDelay:         1 * time.Second,
		MaxDelay:          30 * time.Second,
		CallTimeout:       60 * time.Second,
	}
}

// Do executes fn with bounded retries and exponential backoff.
//
// Authentication failures abort immediately and propagate unchanged so
// the caller can cancel the whole run. Rate-limit and transient
// failures are retried up to MaxAttempts with delay
// BaseDelay*2^(attempt-1), capped at MaxDelay and jittered. Malformed
// responses are retried up to the smaller MalformedAttempts cap. On
// exhaustion the last error is returned for conversion to a per-item
// ErrorRecord; the rest of the batch keeps running.
func Do[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, int, error) {
	var zero T
	var lastErr error
	retries := 0

	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		result, err := fn(attemptCtx)
		cancel()

		if err == nil {
			return result, retries, nil
		}
		lastErr = err

		if providers.IsAuth(err) {
			return zero, retries, err
		}
		if ctx.Err() != nil {
			return zero, retries, fmt.Errorf("call canceled: %w", ctx.Err())
		}

		kind := providers.KindOf(err)
		maxAttempts := cfg.MaxAttempts
		if kind == providers.KindMalformed {
			maxAttempts = cfg.MalformedAttempts
		}
		if attempt >= maxAttempts {
			return zero, retries, lastErr
		}

		delay := backoffDelay(cfg, attempt)
		slog.Debug("Retrying provider call", "attempt", attempt, "max_attempts", maxAttempts, "kind", kind.String(), "delay", delay, "error", err)
		if cfg.OnBackoff != nil {
			cfg.OnBackoff(attempt, delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, retries, fmt.Errorf("call canceled during backoff: %w", ctx.Err())
		}
		retries++
	}
}

// backoffDelay computes BaseDelay*2^(attempt-1) capped at MaxDelay,
// with up to 10% additive jitter to avoid synchronized retries across
// workers.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay << (attempt - 1)
	if delay > cfg.MaxDelay || delay <= 0 {
		delay = cfg.MaxDelay
	}
	jitter := time.Duration(rand.Int64N(int64(delay)/10 + 1))
	return delay + jitter
}
