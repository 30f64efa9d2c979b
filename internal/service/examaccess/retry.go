package examaccess

import (
	"context"
	"log"
	"time"

	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
)

// RetryPolicy описывает повторные попытки для сетевых операций
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	// Sleep waits for d or until ctx is done. Replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy: 3 вызова, задержки 1s, 2s, 4s ...
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  time.Second,
		Sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Delay returns the wait after the given failed attempt (1-based): BaseDelay * 2^(attempt-1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay << uint(attempt-1)
}

// Retry runs op until it succeeds, fails with a non-network error, or has been
// invoked MaxRetries times. Only errors tagged apperrors.KindNetwork are retried;
// the last error is returned unchanged.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	maxRetries := policy.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !apperrors.IsRetryable(err) || attempt == maxRetries {
			return zero, lastErr
		}

		delay := policy.Delay(attempt)
		log.Printf("[Retry] attempt %d/%d failed with network error, retrying in %v: %v", attempt, maxRetries, delay, err)
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return zero, lastErr
		}
	}
	return zero, lastErr
}

// RetryErr is Retry for operations without a result value.
func RetryErr(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	_, err := Retry(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
