package nominatim

import (
	"container/list"
	"context"
	"strings"
	"sync"

	"github.com/couchcryptid/ipc-forecast/internal/domain"
	"github.com/couchcryptid/ipc-forecast/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lru
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRU(maxEntries),
		metrics: metrics,
	}
}

// Geocode serves repeated districts from the cache. Keys ignore case and
// surrounding space. Failures are not cached so the next run retries them.
func (c *CachedGeocoder) Geocode(ctx context.Context, district string) (domain.Coordinates, error) {
	key := strings.ToLower(strings.TrimSpace(district))
	if coords, ok := c.cache.get(key); ok {
		c.metrics.CacheLookups.WithLabelValues(service, "hit").Inc()
		return coords, nil
	}
	c.metrics.CacheLookups.WithLabelValues(service, "miss").Inc()

	coords, err := c.inner.Geocode(ctx, district)
	if err != nil {
		return coords, err
	}
	c.cache.add(key, coords)
	return coords, nil
}

// lru is a mutex-guarded LRU of coordinates. The front of order is the most
// recently used entry.
type lru struct {
	mu    sync.Mutex
	limit int
	order *list.List
	items map[string]*list.Element
}

type lruItem struct {
	key    string
	coords domain.Coordinates
}

func newLRU(limit int) *lru {
	return &lru{
		limit: max(limit, 1),
		order: list.New(),
		items: make(map[string]*list.Element),
	}
}

func (l *lru) get(key string) (domain.Coordinates, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	el, ok := l.items[key]
	if !ok {
		return domain.Coordinates{}, false
	}
	l.order.MoveToFront(el)
	return el.Value.(*lruItem).coords, true
}

func (l *lru) add(key string, coords domain.Coordinates) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.items[key]; ok {
		el.Value.(*lruItem).coords = coords
		l.order.MoveToFront(el)
		return
	}
	l.items[key] = l.order.PushFront(&lruItem{key: key, coords: coords})
	for l.order.Len() > l.limit {
		oldest := l.order.Back()
		l.order.Remove(oldest)
		delete(l.items, oldest.Value.(*lruItem).key)
	}
}

func (l *lru) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}
