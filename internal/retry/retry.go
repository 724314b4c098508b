// Package retry runs an operation under a fixed attempt budget with an
// exponential delay between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is the retry budget of one call site: at most MaxAttempts calls,
// waiting BaseDelay * 2^n after the n-th failure (n starting at 0).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second}
}

// Delay returns the wait after the failure of attempt n (0-based). It
// saturates at the largest time.Duration instead of overflowing.
func (p Policy) Delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < n; i++ {
		if d > math.MaxInt64/2 {
			return math.MaxInt64
		}
		d *= 2
	}
	return d
}

// ExhaustedError is returned once every attempt has failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry budget exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

type options struct {
	timer   backoff.Timer
	onRetry func(attempt int, err error, wait time.Duration)
}

type Option func(*options)

// WithTimer replaces the wall-clock timer used between attempts.
func WithTimer(t backoff.Timer) Option {
	return func(o *options) { o.timer = t }
}

// OnRetry is called after a failed attempt, before waiting. attempt is 1-based.
func OnRetry(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(o *options) { o.onRetry = fn }
}

// Do calls fn until it succeeds or the policy is exhausted. The attempt
// passed to fn is 1-based. Permanent errors (backoff.Permanent) stop the loop
// and are returned as-is; context cancellation returns the context error.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error), opts ...Option) (T, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	attempt := 0
	var lastErr error
	op := func() (T, error) {
		attempt++
		v, err := fn(ctx, attempt)
		if err != nil {
			lastErr = err
		}
		return v, err
	}
	notify := func(err error, wait time.Duration) {
		if o.onRetry != nil {
			o.onRetry(attempt, err, wait)
		}
	}

	b := backoff.WithContext(&schedule{policy: p}, ctx)
	v, err := backoff.RetryNotifyWithTimerAndData(op, b, notify, o.timer)
	if err == nil {
		return v, nil
	}
	var zero T
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}
	var perm *backoff.PermanentError
	if errors.As(lastErr, &perm) {
		return zero, err
	}
	return zero, &ExhaustedError{Attempts: attempt, Last: lastErr}
}

// schedule is a backoff.BackOff yielding Policy delays and stopping once the
// attempt budget is spent.
type schedule struct {
	policy Policy
	n      int
}

func (s *schedule) NextBackOff() time.Duration {
	if s.n >= s.policy.MaxAttempts-1 {
		return backoff.Stop
	}
	d := s.policy.Delay(s.n)
	s.n++
	return d
}

func (s *schedule) Reset() { s.n = 0 }
