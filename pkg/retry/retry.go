package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const defaultDelay = 100 * time.Millisecond

// Unlimited MaxAttempts retries until success, a non-retryable error or
// the context is done.
const Unlimited = -1

const maxShift = 62

type Backoff func(attempt int) time.Duration

type ShouldRetry func(error) bool

type RetryConfig struct {
	MaxAttempts int
	Backoff     Backoff
	ShouldRetry ShouldRetry
}

func (s *RetryConfig) normalize() {
	if s.MaxAttempts == 0 {
		s.MaxAttempts = 1
	}

	if s.Backoff == nil {
		s.Backoff = defaultBackoff()
	}

	if s.ShouldRetry == nil {
		s.ShouldRetry = alwaysRetry
	}

}

func defaultBackoff() Backoff {
	return ExponentialBackoff(defaultDelay)
}

func alwaysRetry(error) bool {
	return true
}

func ExponentialBackoff(delay time.Duration) Backoff {
	return func(attempt int) time.Duration {
		shift := min(attempt, maxShift)
		base := time.Duration(1<<shift) * delay
		if base <= 0 || base/delay != 1<<shift {
			base = math.MaxInt64 / 2
		}
		jitter := time.Duration(rand.Int64N(int64(base/2)+1))
		return base + jitter
	}
}

func LinearBackoff(delay time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return delay
	}
}

// CappedBackoff limits every delay of b to limit.
func CappedBackoff(b Backoff, limit time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return min(b(attempt), limit)
	}
}

func Do(ctx context.Context, c RetryConfig, fn func() error) error {
	_, err := DoWithResult(ctx, c, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func DoWithResult[T any](ctx context.Context, c RetryConfig, fn func() (T, error)) (T, error) {
	var (
		zero, result T
		err          error
	)

	err = ctx.Err()
	if err != nil {
		return zero, err
	}

	c.normalize()
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for attempt := 1; c.MaxAttempts == Unlimited || attempt <= c.MaxAttempts; attempt++ {
		result, err = fn()
		if err == nil {
			return result, nil
		}
		if !c.ShouldRetry(err) || attempt == c.MaxAttempts {
			return zero, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, fmt.Errorf("%w: %w", ctxErr, err)
		}

		wait := c.Backoff(attempt)
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%w: %w", ctx.Err(), err)
		case <-timer.C:
		}
	}

	return zero, err
}
