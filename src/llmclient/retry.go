package llmclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy bounds the retries applied around a single provider call.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the first retry; it doubles each
	// attempt.
	BaseDelay time.Duration
	// MaxDelay caps the backoff.
	MaxDelay time.Duration
}

// DefaultRetryPolicy matches the provider contract: 3 attempts, exponential
// backoff starting at 2s capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Backoff returns the delay to wait after the given failed attempt
// (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt-1)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	return delay
}

// retry runs fn up to p.MaxAttempts times. Only transient errors are
// retried; anything else propagates immediately. Sleeping respects context
// cancellation.
func (p RetryPolicy) retry(ctx context.Context, logger *slog.Logger, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Backoff(attempt)
		logger.Warn("transient provider error, retrying",
			"attempt", attempt, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, p.MaxAttempts, lastErr)
}

// IsExhausted reports whether err is a transient failure that survived the
// full retry budget.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrAttemptsExhausted)
}
