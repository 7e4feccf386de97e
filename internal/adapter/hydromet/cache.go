package hydromet

import (
	"container/list"
	"context"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/couchcryptid/rise-hydromet-export/internal/domain"
	"github.com/couchcryptid/rise-hydromet-export/internal/observability"
)

// SeriesReader is the read capability shared by every resolution accessor.
type SeriesReader interface {
	ReadSeries(ctx context.Context, station, parameter string, w domain.TimeWindow) (domain.Series, error)
}

// CachedReader wraps a SeriesReader with an in-memory LRU cache. Control files
// that list the same series twice are fetched once per run.
type CachedReader struct {
	inner   SeriesReader
	prefix  string
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedReader creates a cache decorator. prefix separates accessors that
// share one cache, typically the resolution name.
func NewCachedReader(inner SeriesReader, prefix string, cache *SeriesCache, metrics *observability.Metrics) *CachedReader {
	return &CachedReader{
		inner:   inner,
		prefix:  prefix,
		cache:   cache.lru,
		metrics: metrics,
	}
}

func (c *CachedReader) ReadSeries(ctx context.Context, station, parameter string, w domain.TimeWindow) (domain.Series, error) {
	key := seriesKey(c.prefix, station, parameter, w)
	if series, ok := c.cache.get(key); ok {
		c.metrics.SeriesCache.WithLabelValues("hit").Inc()
		return series, nil
	}
	c.metrics.SeriesCache.WithLabelValues("miss").Inc()

	series, err := c.inner.ReadSeries(ctx, station, parameter, w)
	if err != nil {
		return series, err
	}
	// Empty results are not cached so a late-arriving series can still be read.
	if len(series) > 0 {
		c.cache.put(key, series)
	}
	return series, nil
}

// SeriesCache is an LRU store shared by the per-resolution CachedReaders.
type SeriesCache struct {
	lru *lruCache
}

// NewSeriesCache creates a cache holding at most maxEntries series.
func NewSeriesCache(maxEntries int) *SeriesCache {
	return &SeriesCache{lru: newLRUCache(maxEntries)}
}

// Len reports the number of cached series.
func (s *SeriesCache) Len() int {
	s.lru.mu.Lock()
	defer s.lru.mu.Unlock()
	return len(s.lru.entries)
}

func seriesKey(prefix, station, parameter string, w domain.TimeWindow) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(prefix)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(station)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(parameter)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(strconv.FormatInt(w.Start.UnixNano(), 10))
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(strconv.FormatInt(w.End.UnixNano(), 10))
	return d.Sum64()
}

// lruCache is a thread-safe LRU of series keyed by xxhash digests.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List // front is most recently used
	entries    map[uint64]*list.Element
}

type cacheItem struct {
	key    uint64
	series domain.Series
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[uint64]*list.Element),
	}
}

func (c *lruCache) get(key uint64) (domain.Series, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheItem).series, true
}

func (c *lruCache) put(key uint64, series domain.Series) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheItem).series = series
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheItem{key: key, series: series})
	for len(c.entries) > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheItem).key)
	}
}
