package task

import (
	"context"
	"time"

	"github.com/phrazzld/docflow/internal/processing"
	"github.com/sethvargo/go-retry"
)

const maxRetryDelay = 30 * time.Second

// RetryPolicy retries transient processing-service failures with jittered
// exponential backoff. The zero value makes exactly one attempt.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Do calls fn until it succeeds, fails permanently, or retries run out.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.MaxRetries <= 0 {
		return fn(ctx)
	}

	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithCappedDuration(maxRetryDelay, b)
	b = retry.WithMaxRetries(uint64(p.MaxRetries), b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if processing.IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
