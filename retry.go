package pricecheck

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds an operation that may be retried on specific errors.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Delay is the pause between attempts. Zero retries immediately.
	Delay time.Duration

	// Retryable decides whether an error warrants another attempt.
	// Defaults to IsConflict.
	Retryable func(error) bool
}

// DefaultRetryPolicy retries revision conflicts up to MaxCreateAttempts times
// in total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: MaxCreateAttempts, Retryable: IsConflict}
}

// RetryExhaustedError is returned when every attempt failed with a retryable
// error. Err is the last attempt's error.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// Do runs op until it succeeds, fails with a non-retryable error, or the
// attempt bound is reached. op receives the 1-based attempt number.
// Non-retryable errors are returned unchanged; exhaustion yields a
// *RetryExhaustedError wrapping the last error.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsConflict
	}
	delay := p.Delay
	if delay <= 0 {
		// the constant backoff rejects non-positive durations
		delay = time.Nanosecond
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(delay))

	attempt := 0
	exhausted := false
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt >= attempts {
			exhausted = true
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil && exhausted {
		return &RetryExhaustedError{Attempts: attempt, Err: err}
	}
	return err
}

// IsRetryExhausted reports whether err came from an exhausted RetryPolicy.
func IsRetryExhausted(err error) bool {
	var rerr *RetryExhaustedError
	return errors.As(err, &rerr)
}
