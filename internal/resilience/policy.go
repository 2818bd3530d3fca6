// Package resilience applies retry, backoff, rate limiting, and circuit
// breaking to calls against external services.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Policy governs every call to one external service. A single Policy, and
// therefore a single limiter, is shared by all workers calling that service.
type Policy struct {
	name        string
	maxAttempts int
	initial     time.Duration
	maxDelay    time.Duration
	multiplier  float64
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	clock       clockwork.Clock
	onRetry     func(attempt int, delay time.Duration, err error)
}

// Option configures a Policy.
type Option func(*Policy)

// WithBackoff sets the exponential backoff schedule. The delay after attempt
// n is initial * multiplier^(n-1), capped at maxDelay.
func WithBackoff(initial, maxDelay time.Duration, multiplier float64) Option {
	return func(p *Policy) {
		p.initial = initial
		p.maxDelay = maxDelay
		p.multiplier = multiplier
	}
}

// WithLimiter gates every attempt on a shared token bucket.
func WithLimiter(l *rate.Limiter) Option {
	return func(p *Policy) { p.limiter = l }
}

// WithBreaker routes every attempt through a circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(p *Policy) { p.breaker = cb }
}

// WithClock sets the time source for backoff sleeps.
func WithClock(c clockwork.Clock) Option {
	return func(p *Policy) { p.clock = c }
}

// WithRetryHook is called before each backoff sleep.
func WithRetryHook(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(p *Policy) { p.onRetry = fn }
}

// New creates a Policy allowing up to maxAttempts calls per operation.
func New(name string, maxAttempts int, opts ...Option) *Policy {
	p := &Policy{
		name:        name,
		maxAttempts: max(maxAttempts, 1),
		initial:     time.Second,
		maxDelay:    30 * time.Second,
		multiplier:  2,
		clock:       clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the service name the policy was created for.
func (p *Policy) Name() string { return p.name }

// NewLimiter returns a token bucket allowing calls per period, with a burst
// of one full period.
func NewLimiter(calls int, period time.Duration) *rate.Limiter {
	if calls <= 0 || period <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(period/time.Duration(calls)), calls)
}

// Do runs op under the policy.
func (p *Policy) Do(ctx context.Context, op func(context.Context) error) error {
	_, err := Call(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Call runs op under p, retrying transient failures. Permanent errors and
// context cancellation return immediately. A nil policy runs op once.
func Call[T any](ctx context.Context, p *Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if p == nil {
		return op(ctx)
	}

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return zero, fmt.Errorf("%s: rate limit wait: %w", p.name, err)
			}
		}

		v, err := execute(ctx, p, op)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if ctx.Err() != nil || IsPermanent(err) {
			return zero, err
		}
		if attempt == p.maxAttempts {
			break
		}

		delay := p.Backoff(attempt)
		if p.onRetry != nil {
			p.onRetry(attempt, delay, err)
		}
		if !sleepWithContext(ctx, p.clock, delay) {
			return zero, fmt.Errorf("%s: %w", p.name, ctx.Err())
		}
	}
	return zero, fmt.Errorf("%s: giving up after %d attempts: %w", p.name, p.maxAttempts, lastErr)
}

func execute[T any](ctx context.Context, p *Policy, op func(context.Context) (T, error)) (T, error) {
	if p.breaker == nil {
		return op(ctx)
	}
	out, err := p.breaker.Execute(func() (interface{}, error) {
		return op(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

// Backoff returns the delay after the given 1-based attempt.
func (p *Policy) Backoff(attempt int) time.Duration {
	if p.initial <= 0 {
		return 0
	}
	d := float64(p.initial) * math.Pow(p.multiplier, float64(attempt-1))
	if p.maxDelay > 0 && d > float64(p.maxDelay) {
		return p.maxDelay
	}
	return time.Duration(d)
}

func sleepWithContext(ctx context.Context, clk clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clk.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or any error it wraps, was marked Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
