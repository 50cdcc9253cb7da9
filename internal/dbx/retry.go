package dbx

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy is a fixed-delay, bounded retry used once at process start
// while the store comes up. Request paths never retry.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// WaitFor runs op until it succeeds or the policy is exhausted. onFailure,
// when non-nil, is told about every failed attempt (1-based). The last error
// is returned when all attempts fail.
func WaitFor(ctx context.Context, p RetryPolicy, op func(ctx context.Context) error, onFailure func(attempt int, err error)) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay
	if delay <= 0 {
		delay = time.Millisecond
	}

	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(delay))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := op(ctx); err != nil {
			if onFailure != nil {
				onFailure(attempt, err)
			}
			return retry.RetryableError(err)
		}
		return nil
	})
}
