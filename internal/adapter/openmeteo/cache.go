package openmeteo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/ipc-forecast/internal/domain"
	"github.com/couchcryptid/ipc-forecast/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/timshannon/badgerhold/v4"
)

// settleAge is how far in the past a range must end before the archive
// stops revising it.
const settleAge = 7 * 24 * time.Hour

// OpenStore opens (or creates) the badgerhold store backing the weather cache.
func OpenStore(dir string) (*badgerhold.Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create weather cache directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open weather cache: %w", err)
	}
	return store, nil
}

// cachedMonths is the persisted form of one archive query.
type cachedMonths struct {
	Key       string
	Months    domain.WeatherMonths
	FetchedAt time.Time
}

// CachedSource wraps a WeatherSource with a persistent cache of settled
// historical ranges.
type CachedSource struct {
	inner   domain.WeatherSource
	store   *badgerhold.Store
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedSource creates a cache decorator around a weather source.
func NewCachedSource(inner domain.WeatherSource, store *badgerhold.Store, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *CachedSource {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedSource{
		inner:   inner,
		store:   store,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// MonthlyAverages serves settled ranges from the store. Recent ranges always
// go to the inner source.
func (c *CachedSource) MonthlyAverages(ctx context.Context, q domain.WeatherQuery) (domain.WeatherMonths, error) {
	if !c.cacheable(q) {
		return c.inner.MonthlyAverages(ctx, q)
	}

	key := cacheKey(q)
	var hit cachedMonths
	err := c.store.Get(key, &hit)
	switch {
	case err == nil:
		c.metrics.CacheLookups.WithLabelValues(service, "hit").Inc()
		return hit.Months, nil
	case !errors.Is(err, badgerhold.ErrNotFound):
		c.logger.Warn("weather cache read failed", "key", key, "error", err)
	}
	c.metrics.CacheLookups.WithLabelValues(service, "miss").Inc()

	months, err := c.inner.MonthlyAverages(ctx, q)
	if err != nil {
		return nil, err
	}

	record := cachedMonths{Key: key, Months: months, FetchedAt: c.clock.Now().UTC()}
	if err := c.store.Upsert(key, &record); err != nil {
		c.logger.Warn("weather cache write failed", "key", key, "error", err)
	}
	return months, nil
}

func (c *CachedSource) cacheable(q domain.WeatherQuery) bool {
	return c.clock.Since(q.End) >= settleAge
}

func cacheKey(q domain.WeatherQuery) string {
	return fmt.Sprintf("%.4f,%.4f|%s|%s|%s",
		q.Lat, q.Lon,
		q.Start.Format(domain.DateLayout),
		q.End.Format(domain.DateLayout),
		strings.Join(q.Variables, ","),
	)
}
