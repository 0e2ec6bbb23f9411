// Package retry wraps remote store calls with bounded retry and exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Default retry policy values.
const (
	// DefaultMaxRetries is the default number of retries after the first attempt.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the default backoff unit; attempt i waits BaseDelay * 2^i.
	DefaultBaseDelay = 1 * time.Second
)

// Config configures retry behavior.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt,
	// so an operation runs at most MaxRetries+1 times.
	MaxRetries int
	// BaseDelay is the delay before the first retry. The delay doubles
	// after every retryable failure with no jitter and no cap.
	BaseDelay time.Duration
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
	}
}

// Do executes fn until it succeeds, fails terminally, or exhausts retries.
// Transient failures (see Classify) back off exponentially between attempts;
// terminal failures abort immediately without consuming the remaining retries.
// The last failure is returned to the caller unwrapped so it can be classified
// again upstream.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}

	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !Classify(err).Retryable() {
			return err
		}

		// No sleep after the final attempt.
		if attempt < cfg.MaxRetries {
			delay := cfg.BaseDelay << uint(attempt)
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return lastErr
}

// DoValue is like Do for operations that return a value.
func DoValue[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	return result, err
}
