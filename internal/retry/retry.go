// Package retry wraps operations with bounded exponential backoff.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
)

// Config controls the retry behavior for one wrapped operation.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt
	MaxRetries int

	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff delay
	MaxDelay time.Duration

	// Jitter randomizes each delay to desynchronize concurrent retriers
	Jitter bool

	// RetryIf decides whether an error is worth retrying. Defaults to
	// IsTransient. This set is intentionally narrower than the router's
	// recoverable set: the router handles vendor fallback, this handles
	// flaky I/O.
	RetryIf func(error) bool
}

// DefaultConfig returns the standard retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   60 * time.Second,
		Jitter:     true,
	}
}

// IsTransient reports whether err looks like a transient I/O failure:
// a network timeout, a connection failure, or a truncated read.
func IsTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrDeadlineExceeded)
}

// Do runs op, retrying on retryable failures with exponential backoff.
//
// Attempts are numbered 0..MaxRetries. A retryable failure that is not the
// final attempt sleeps min(BaseDelay*2^attempt, MaxDelay), scaled by a
// jitter factor in [0.5, 1.0) when enabled, then tries again. The final
// failure is returned unchanged after logging the attempt count.
// Non-retryable errors return immediately, never delayed. The sleep honors
// context cancellation.
func Do[T any](ctx context.Context, cfg Config, logger *zap.Logger, op func(context.Context) (T, error)) (T, error) {
	var zero T

	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = IsTransient
	}

	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if !retryIf(err) {
			return zero, err
		}

		if attempt == cfg.MaxRetries {
			logger.Error("retry exhausted",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", cfg.MaxRetries),
				zap.Error(err))
			return zero, err
		}

		delay := delayFor(cfg, attempt)

		logger.Warn("retry attempt",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", cfg.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// delayFor computes the backoff delay for the given attempt index
func delayFor(cfg Config, attempt int) time.Duration {
	delay := cfg.BaseDelay
	for i := 0; i < attempt && delay < cfg.MaxDelay; i++ {
		delay *= 2
	}
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	if cfg.Jitter {
		delay = time.Duration(float64(delay) * jitterFactor())
	}
	return delay
}

// jitterFactor draws a factor in [0.5, 1.0) from a cryptographically strong
// source. A fast PRNG seeded identically across many concurrent callers
// would produce correlated backoff and re-synchronized retry storms.
func jitterFactor() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		// rand.Reader failing means the platform entropy source is broken;
		// fall back to the midpoint rather than aborting the retry.
		return 0.75
	}
	return 0.5 + float64(n.Int64())/2000
}
