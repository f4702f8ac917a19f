package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/util"
)

// Runner executes store operations with a per-attempt timeout and retries
// the ones that failed with Conflict or Unavailable.
type Runner struct {
	timeout    time.Duration
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// NewRunner creates a runner. maxRetries counts attempts after the first.
func NewRunner(timeout time.Duration, maxRetries uint64) *Runner {
	return &Runner{
		timeout:    timeout,
		maxRetries: maxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
}

// Do runs op until it succeeds, fails permanently, or the retries run out
func (r *Runner) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)

	err := backoff.RetryNotify(
		func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			err := op(attemptCtx)
			if err != nil && !apperr.Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		b,
		func(err error, wait time.Duration) {
			util.StoreRetriesTotal.WithLabelValues(name).Inc()
			util.LoggerFromContext(ctx).Warn("Retrying store operation",
				zap.String("op", name),
				zap.Duration("wait", wait),
				zap.Error(err))
		},
	)

	if err != nil && apperr.KindOf(err) == apperr.KindInternal &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return apperr.ErrUnavailable.Wrap(err)
	}
	return err
}
