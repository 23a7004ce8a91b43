// Package retry implements capped exponential backoff with full jitter.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Backoff computes the wait before a retry. The zero value never waits.
type Backoff struct {
	Base    time.Duration
	Ceiling time.Duration
	// Jitter returns a value in [0, n). Defaults to math/rand.
	Jitter func(n int64) int64
}

// Delay returns the wait after the given failed attempt (1-based): a uniform draw from
// [0, min(Ceiling, Base*2^(attempt-1))].
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	ceiling := b.Ceiling
	if ceiling < b.Base {
		ceiling = b.Base
	}

	capped := b.Base
	for i := 1; i < attempt && capped < ceiling; i++ {
		capped *= 2
	}
	if capped > ceiling {
		capped = ceiling
	}

	jitter := b.Jitter
	if jitter == nil {
		jitter = rand.Int64N
	}
	return time.Duration(jitter(int64(capped) + 1))
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
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

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts int
	Backoff     Backoff
	// Retryable decides whether an error is worth another attempt. Nil retries nothing.
	Retryable func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
	// Sleep overrides the wait, mainly for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do runs fn until it succeeds, returns a non-retryable error, or attempts run out.
// The last error is returned unwrapped so callers can classify it.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= attempts || p.Retryable == nil || !p.Retryable(err) {
			return err
		}

		delay := p.Backoff.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return fmt.Errorf("retry wait: %w", serr)
		}
	}
}
