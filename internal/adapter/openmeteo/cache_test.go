package openmeteo

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/ipc-forecast/internal/domain"
	"github.com/couchcryptid/ipc-forecast/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls  int
	months domain.WeatherMonths
	err    error
}

func (s *countingSource) MonthlyAverages(_ context.Context, _ domain.WeatherQuery) (domain.WeatherMonths, error) {
	s.calls++
	return s.months, s.err
}

func newTestCache(t *testing.T, inner domain.WeatherSource, now time.Time) *CachedSource {
	t.Helper()
	store, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return NewCachedSource(inner, store, clockwork.NewFakeClockAt(now),
		observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCachedSource_SettledRangeCached(t *testing.T) {
	inner := &countingSource{months: domain.WeatherMonths{"2024-10": {"rain_sum": 1.5}}}
	cache := newTestCache(t, inner, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))

	first, err := cache.MonthlyAverages(context.Background(), testQuery())
	require.NoError(t, err)
	second, err := cache.MonthlyAverages(context.Background(), testQuery())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedSource_RecentRangeBypassesCache(t *testing.T) {
	inner := &countingSource{months: domain.WeatherMonths{"2024-10": {"rain_sum": 1.5}}}
	cache := newTestCache(t, inner, time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC))

	_, err := cache.MonthlyAverages(context.Background(), testQuery())
	require.NoError(t, err)
	_, err = cache.MonthlyAverages(context.Background(), testQuery())
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedSource_ErrorsNotCached(t *testing.T) {
	inner := &countingSource{err: domain.ErrWeatherUnavailable}
	cache := newTestCache(t, inner, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))

	_, err := cache.MonthlyAverages(context.Background(), testQuery())
	require.ErrorIs(t, err, domain.ErrWeatherUnavailable)
	_, err = cache.MonthlyAverages(context.Background(), testQuery())
	require.ErrorIs(t, err, domain.ErrWeatherUnavailable)

	assert.Equal(t, 2, inner.calls)
}

func TestCacheKey_DistinguishesVariables(t *testing.T) {
	a := testQuery()
	b := testQuery()
	b.Variables = []string{"rain_sum"}

	assert.NotEqual(t, cacheKey(a), cacheKey(b))
	assert.Equal(t, "24.7447,70.1704|2024-02-01|2024-11-01|rain_sum,temperature_2m_mean", cacheKey(a))
}
