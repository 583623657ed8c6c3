// Package retry runs remote calls under a bounded retry policy for transient failures.
package retry

import (
	"context"
	"errors"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Policy is a fixed-backoff retry budget.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultPolicy is three attempts one second apart.
var DefaultPolicy = Policy{MaxAttempts: 3, Backoff: time.Second}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Do runs fn until it succeeds, fails with a non-transient error, or the budget is spent.
// Only errors matching domain.ErrTransient are retried; the last error is returned unchanged.
func Do(ctx context.Context, p Policy, log *zerolog.Logger, op string, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, log, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for calls that return a value.
func DoValue[T any](ctx context.Context, p Policy, log *zerolog.Logger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	max := p.attempts()
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, domain.ErrTransient) || attempt >= max {
			return zero, err
		}
		if log != nil {
			log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Int("max_attempts", max).
				Dur("backoff", p.Backoff).Msg("transient failure, retrying")
		}
		metrics.IncRemoteRetry(op)
		if err := sleep(ctx, p.Backoff); err != nil {
			return zero, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
