// Package retry runs an operation with linear backoff and an optional timeout.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout matches every *TimeoutError via errors.Is.
var ErrTimeout = errors.New("operation timed out")

// TimeoutError is returned by WithTimeout when the deadline fires before the
// operation returns.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation timed out after %s", e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) Timeout() bool { return true }

type Options struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// InitialDelay is multiplied by the attempt number before each retry.
	InitialDelay time.Duration
	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool
	// OnRetry is called before sleeping, with the failed attempt number.
	OnRetry func(err error, attempt int)
}

// Do invokes op until it succeeds, returns a non-retryable error, or MaxRetries
// retries are used up. The last error is returned unchanged.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts Options) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt > opts.MaxRetries {
			break
		}
		if opts.Retryable != nil && !opts.Retryable(err) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		if opts.OnRetry != nil {
			opts.OnRetry(err, attempt)
		}

		backoff := opts.InitialDelay * time.Duration(attempt)
		if err := sleep(ctx, backoff); err != nil {
			return zero, lastErr
		}
	}
	return zero, lastErr
}

// WithTimeout runs op under a context that is cancelled after d. Unlike a bare
// race, the operation's context is cancelled too, so it can release whatever it
// holds. When the deadline wins, a *TimeoutError is returned.
func WithTimeout[T any](ctx context.Context, d time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return op(ctx)
	}

	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := op(opCtx)
		done <- outcome{v, err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, &TimeoutError{After: d}
		}
		return out.val, out.err
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, &TimeoutError{After: d}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
