// Package retry implements the shared transient I/O retry policy:
// exponential backoff, 5s initial, doubling up to a 60s cap, at most 3
// attempts. Built on cenkalti/backoff/v4's ExponentialBackOff rather
// than a hand-rolled loop, so every component shares one policy
// instead of each rolling its own.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config is the component-agnostic transient I/O retry policy shape.
type Config struct {
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// DefaultConfig returns the default transient I/O policy: 5s initial
// backoff, doubling, capped at 60s, 3 attempts.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		BackoffBase:       5 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        60 * time.Second,
	}
}

// Permanent wraps an error to signal Do should stop retrying immediately,
// mirroring backoff.Permanent.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op, retrying transient failures per cfg. op signals a
// non-retryable failure by wrapping its error with Permanent. The second
// and subsequent attempts sleep for cfg.BackoffBase * cfg.BackoffMultiplier^n,
// capped at cfg.MaxBackoff, before retrying.
func Do(ctx context.Context, cfg Config, op func() error) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = cfg.BackoffBase
	expBackoff.Multiplier = cfg.BackoffMultiplier
	expBackoff.MaxInterval = cfg.MaxBackoff
	expBackoff.MaxElapsedTime = 0 // bounded by MaxAttempts, not wall-clock

	attempts := 0
	wrapped := func() error {
		attempts++
		return op()
	}

	retries := cfg.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(retries)), ctx)
	if err := backoff.Retry(wrapped, bo); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	}
	return nil
}
