package retry

import (
	"context"
)

// Action is a function to be performed in a retriable manner
type Action func() error

// Retrier retries actions against a fixed set of strategies
type Retrier interface {
	Retry(action Action) (uint, error)
	RetryContext(ctx context.Context, action Action) (uint, error)
}

type retrier struct {
	strategies []Strategy
}

// NewRetrier returns a Retrier using the provided strategies. Without any
// strategies it retries in a tight loop until the action succeeds.
func NewRetrier(strategies ...Strategy) Retrier {
	return &retrier{
		strategies: strategies,
	}
}

func (r *retrier) Retry(action Action) (uint, error) {
	return Retry(action, r.strategies...)
}

func (r *retrier) RetryContext(ctx context.Context, action Action) (uint, error) {
	return RetryContext(ctx, action, r.strategies...)
}

// Retry is RetryContext without a deadline
func Retry(action Action, strategies ...Strategy) (uint, error) {
	return RetryContext(context.Background(), action, strategies...)
}

// RetryContext executes the action until it succeeds or a strategy declines
// another attempt, and returns the number of attempts made. Once ctx is done
// no further attempt is made and ctx's error is returned.
//
// Strategies are evaluated in order, so strategies that delay should be
// specified last.
func RetryContext(ctx context.Context, action Action, strategies ...Strategy) (uint, error) {
	for attempts := uint(1); ; attempts++ {
		err := action()
		if err == nil {
			return attempts, nil
		}

		retry := true
		for _, s := range strategies {
			if retry = s(ctx, attempts, err); !retry {
				break
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempts, ctxErr
		}
		if !retry {
			return attempts, err
		}
	}
}
