// Package retry wraps fallible operations with bounded exponential
// backoff. Cancellation is carried by the caller's context: tearing the
// owning component down cancels pending backoff waits immediately.
package retry

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultMaxAttempts is the total number of tries, first attempt
	// included.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the wait before the first retry. Each
	// subsequent retry doubles it: 5s, 10s, 20s, ...
	DefaultBaseDelay = 5 * time.Second
)

// Sleeper waits for d or until ctx is cancelled, whichever comes first.
// Tests substitute a fake to run deterministically without sleeping.
type Sleeper func(ctx context.Context, d time.Duration) error

func defaultSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type config struct {
	maxAttempts int
	baseDelay   time.Duration
	retryable   func(error) bool
	sleep       Sleeper
}

// Option customizes a Do call.
type Option func(*config)

// WithMaxAttempts overrides the total attempt count.
func WithMaxAttempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBaseDelay overrides the first retry delay.
func WithBaseDelay(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithRetryable installs the error classifier. An error the classifier
// rejects is surfaced immediately without further attempts.
func WithRetryable(f func(error) bool) Option {
	return func(c *config) {
		c.retryable = f
	}
}

// WithSleeper substitutes the wait implementation.
func WithSleeper(s Sleeper) Option {
	return func(c *config) {
		c.sleep = s
	}
}

// Delay returns the backoff wait preceding retry number n (1-based):
// base, 2*base, 4*base, ...
func Delay(base time.Duration, n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return base << uint(n-1)
}

// Do invokes op until it succeeds, the classifier rules the error
// terminal, the attempt budget runs out, or ctx is cancelled. The last
// error is returned when attempts are exhausted.
func Do[T any](ctx context.Context, op func(context.Context) (T, error), opts ...Option) (T, error) {
	cfg := config{
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		retryable:   defaultRetryable,
		sleep:       defaultSleeper,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.retryable(err) || attempt == cfg.maxAttempts {
			return zero, lastErr
		}

		if err := cfg.sleep(ctx, Delay(cfg.baseDelay, attempt)); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}

// defaultRetryable treats everything except cancellation as retryable.
// Callers normally install a domain classifier instead.
func defaultRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
