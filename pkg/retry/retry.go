// Package retry repeats an operation with exponential backoff while it fails
// with errors the caller marks as retryable.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is wrapped by the error returned when every attempt failed
var ErrExhausted = errors.New("retry attempts exhausted")

// Config contains configuration for retries with exponential backoff
type Config struct {
	// MaxAttempts bounds the number of attempts; 0 retries until the context ends
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialDelay    time.Duration `mapstructure:"initial_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`
	BackoffMultiple float64       `mapstructure:"backoff_multiple"`
}

// DefaultConfig returns the defaults used for conflicting-state retries
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     30,
		InitialDelay:    5 * time.Second,
		MaxDelay:        60 * time.Second,
		BackoffMultiple: 1.5,
	}
}

// CeilingDelay caps the backoff when Config.MaxDelay is unset
const CeilingDelay = 10 * time.Minute

// nextDelay grows delay by the backoff multiple, capped at MaxDelay (or
// CeilingDelay when MaxDelay is unset). The product is compared as a float so
// it cannot overflow time.Duration.
func nextDelay(delay time.Duration, cfg Config) time.Duration {
	limit := cfg.MaxDelay
	if limit <= 0 {
		limit = CeilingDelay
	}
	if cfg.BackoffMultiple > 0 {
		if next := float64(delay) * cfg.BackoffMultiple; next < float64(limit) {
			delay = time.Duration(next)
		} else {
			delay = limit
		}
	}
	if delay > limit {
		delay = limit
	}
	return delay
}

// Option customizes a single Do call.
type Option func(*options)

type options struct {
	sleep     func(ctx context.Context, d time.Duration) error
	retryable func(error) bool
	notify    func(attempt int, delay time.Duration, err error)
}

// WithSleep replaces the timer-based wait between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) {
		o.sleep = sleep
	}
}

// WithRetryable sets the predicate selecting errors worth another attempt.
// Without it every error is retried.
func WithRetryable(fn func(error) bool) Option {
	return func(o *options) {
		o.retryable = fn
	}
}

// WithNotify registers a callback invoked before each wait.
func WithNotify(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(o *options) {
		o.notify = fn
	}
}

func timerSleep(ctx context.Context, d time.Duration) error {
	// Use a timer so we can respect context cancellation during the delay
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do calls fn until it succeeds, fails with a non-retryable error, the
// attempts run out or ctx ends. Non-retryable errors are returned unchanged;
// exhaustion returns an error wrapping both ErrExhausted and the last failure.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error, opts ...Option) error {
	o := options{sleep: timerSleep, retryable: func(error) bool { return true }}
	for _, opt := range opts {
		opt(&o)
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; cfg.MaxAttempts <= 0 || attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt-1, err)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !o.retryable(err) {
			return err
		}
		lastErr = err

		// Don't wait after the final attempt
		if attempt == cfg.MaxAttempts {
			break
		}

		if o.notify != nil {
			o.notify(attempt, delay, err)
		}
		if err := o.sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, err)
		}

		delay = nextDelay(delay, cfg)
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, cfg.MaxAttempts, lastErr)
}
