package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fastPolicy(attempts int, opts ...Option) *Policy {
	opts = append([]Option{WithBackoff(time.Millisecond, 2*time.Millisecond, 2)}, opts...)
	return New("test", attempts, opts...)
}

func TestCall_SucceedsAfterRetries(t *testing.T) {
	var calls int
	var retries []int
	p := fastPolicy(5, WithRetryHook(func(attempt int, _ time.Duration, _ error) {
		retries = append(retries, attempt)
	}))

	got, err := Call(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errFlaky
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestCall_GivesUp(t *testing.T) {
	var calls int
	p := fastPolicy(3)

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})

	require.ErrorIs(t, err, errFlaky)
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestCall_PermanentStops(t *testing.T) {
	var calls int
	p := fastPolicy(5)

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errFlaky)
	})

	require.ErrorIs(t, err, errFlaky)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestCall_NilPolicyRunsOnce(t *testing.T) {
	var calls int
	_, err := Call(context.Background(), nil, func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})

	require.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestCall_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New("test", 5, WithBackoff(time.Hour, time.Hour, 2), WithRetryHook(func(int, time.Duration, error) {
		cancel()
	}))

	err := p.Do(ctx, func(context.Context) error { return errFlaky })

	require.ErrorIs(t, err, context.Canceled)
}

func TestBackoff_Schedule(t *testing.T) {
	p := New("test", 5, WithBackoff(60*time.Second, 300*time.Second, 2))

	assert.Equal(t, 60*time.Second, p.Backoff(1))
	assert.Equal(t, 120*time.Second, p.Backoff(2))
	assert.Equal(t, 240*time.Second, p.Backoff(3))
	assert.Equal(t, 300*time.Second, p.Backoff(4))
}

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(100, time.Minute)
	assert.Equal(t, 100, l.Burst())
	assert.InDelta(t, 100.0/60.0, float64(l.Limit()), 1e-9)
}

func TestBreaker_OpensAndIgnoresPermanent(t *testing.T) {
	cb := NewBreaker("test", BreakerConfig{Timeout: time.Hour, MinRequests: 2, FailureRatio: 0.5}, nil)
	p := New("test", 1, WithBreaker(cb))
	ctx := context.Background()

	for range 3 {
		_ = p.Do(ctx, func(context.Context) error { return Permanent(errFlaky) })
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())

	for range 3 {
		_ = p.Do(ctx, func(context.Context) error { return errFlaky })
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	err := p.Do(ctx, func(context.Context) error { return nil })
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestCheckStatus(t *testing.T) {
	require.NoError(t, CheckStatus("svc", http.StatusOK))

	err := CheckStatus("svc", http.StatusTooManyRequests)
	require.Error(t, err)
	assert.False(t, IsPermanent(err))

	err = CheckStatus("svc", http.StatusBadGateway)
	assert.False(t, IsPermanent(err))

	err = CheckStatus("svc", http.StatusBadRequest)
	assert.True(t, IsPermanent(err))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
}
