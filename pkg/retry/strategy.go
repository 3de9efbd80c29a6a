package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/code-payments/token-manager-server/pkg/retry/backoff"
)

// Strategy decides whether a failed action should be attempted again.
// Strategies may block, for example to back off, and must return promptly
// once ctx is done.
type Strategy func(ctx context.Context, attempts uint, err error) bool

// Limit caps the total number of attempts. maxAttempts should be at least 1,
// since the action is always performed once.
func Limit(maxAttempts uint) Strategy {
	return func(_ context.Context, attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors retries only errors matching one of the provided errors
func RetriableErrors(retriableErrors ...error) Strategy {
	return func(_ context.Context, _ uint, err error) bool {
		for _, e := range retriableErrors {
			if errors.Is(err, e) {
				return true
			}
		}
		return false
	}
}

// RetriableIf retries errors matching the predicate, such as transaction
// rejections that are safe to resubmit.
func RetriableIf(predicate func(error) bool) Strategy {
	return func(_ context.Context, _ uint, err error) bool {
		return predicate(err)
	}
}

// Backoff sleeps before the next attempt for the strategy's delay, capped at
// maxBackoff.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return func(ctx context.Context, attempts uint, _ error) bool {
		return sleep(ctx, min(strategy(attempts), maxBackoff))
	}
}

// BackoffWithJitter is Backoff with the capped delay randomly spread by up to
// jitter in either direction. For example, a 100ms delay with a jitter of 0.1
// sleeps between 90ms and 110ms.
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	return func(ctx context.Context, attempts uint, _ error) bool {
		delay := min(strategy(attempts), maxBackoff)
		spread := 1 + jitter*(2*rand.Float64()-1)
		return sleep(ctx, time.Duration(float64(delay)*spread))
	}
}

// sleep waits for d and reports whether ctx is still live afterwards
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
