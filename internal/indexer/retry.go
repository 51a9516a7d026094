package indexer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// withRetry calls fn until it succeeds or maxRetries retries are spent, doubling the wait
// from baseDelay after each failure. An error wrapped with backoff.Permanent stops at once.
// onRetry runs before each wait with the zero based attempt that failed.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, onRetry func(attempt int, err error), fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = baseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(maxRetries)), ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		return fn(ctx)
	}, policy, func(err error, _ time.Duration) {
		if onRetry != nil {
			onRetry(attempt, err)
		}
		attempt++
	})
}
