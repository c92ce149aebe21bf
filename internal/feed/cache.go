package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"edgelab/internal/backtest"
	"edgelab/internal/domain"
	"edgelab/internal/store"
	"edgelab/internal/util"
)

// Compile-time interface checks.
var (
	_ Fetcher                 = (*StoreFetcher)(nil)
	_ Fetcher                 = (*CachingFetcher)(nil)
	_ backtest.SeriesProvider = (*MemoryCache)(nil)
)

// ---------------------------------------------------------------------------
// StoreFetcher: offline reads from the local bar store.
// ---------------------------------------------------------------------------

// StoreFetcher serves bars from a BarStore without touching the network.
type StoreFetcher struct {
	store store.BarStore
}

// NewStoreFetcher creates a StoreFetcher over s.
func NewStoreFetcher(s store.BarStore) *StoreFetcher {
	return &StoreFetcher{store: s}
}

// FetchBars reads stored bars within [start, end].
func (f *StoreFetcher) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	return f.store.ReadBars(ctx, symbol, start, end)
}

// ---------------------------------------------------------------------------
// CachingFetcher: read-through bar store in front of a remote fetcher.
// ---------------------------------------------------------------------------

// maxHeadGap is how far the first stored bar may lie after the requested
// start before the head is backfilled.
const maxHeadGap = 7 * 24 * time.Hour

// CachingFetcher serves bars from a BarStore and fills missing head and
// tail ranges from a remote Fetcher, persisting what it downloads. Bars for
// the current, unfinished weekday are never requested.
type CachingFetcher struct {
	remote Fetcher
	store  store.BarStore
	now    func() time.Time
	log    *slog.Logger

	mu        sync.Mutex
	headTried map[string]bool
}

// NewCachingFetcher creates a CachingFetcher.
func NewCachingFetcher(remote Fetcher, s store.BarStore) *CachingFetcher {
	return &CachingFetcher{
		remote:    remote,
		store:     s,
		now:       time.Now,
		log:       slog.Default().With("component", "feed.cache"),
		headTried: make(map[string]bool),
	}
}

// FetchBars returns stored bars for [start, end] after topping up the store.
// A remote failure falls back to whatever is already stored.
func (f *CachingFetcher) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)
	stored, err := f.store.ReadBars(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}

	// Latest bar that can be final: the previous weekday, end of day.
	lastFinal := util.PreviousWeekday(f.now())
	cutoff := minTime(end, lastFinal.Add(24*time.Hour-time.Nanosecond))

	var gaps []DateRange
	switch {
	case len(stored) == 0:
		if f.markHeadTried(symbol) {
			gaps = append(gaps, DateRange{Start: start, End: cutoff})
		}
	default:
		first, last := stored[0].Timestamp, stored[len(stored)-1].Timestamp
		if first.Sub(start) > maxHeadGap && f.markHeadTried(symbol) {
			gaps = append(gaps, DateRange{Start: start, End: first.Add(-time.Nanosecond)})
		}
		if last.Before(lastFinal) && cutoff.After(last) {
			gaps = append(gaps, DateRange{Start: last.Add(time.Nanosecond), End: cutoff})
		}
	}
	if len(gaps) == 0 {
		return stored, nil
	}

	fetched := 0
	for _, g := range gaps {
		if !g.End.After(g.Start) {
			continue
		}
		bars, err := f.remote.FetchBars(ctx, symbol, g.Start, g.End)
		if err != nil {
			if len(stored) == 0 {
				return nil, err
			}
			f.log.Warn("remote fetch failed, serving cached bars", "symbol", symbol, "error", err)
			return stored, nil
		}
		if len(bars) == 0 {
			continue
		}
		if err := f.store.WriteBars(ctx, bars); err != nil {
			return nil, fmt.Errorf("writing cache: %w", err)
		}
		fetched += len(bars)
	}
	if fetched == 0 {
		return stored, nil
	}
	f.log.Debug("cache topped up", "symbol", symbol, "bars", fetched)
	return f.store.ReadBars(ctx, symbol, start, end)
}

// markHeadTried records a head backfill attempt for symbol and reports
// whether this is the first one in the process.
func (f *CachingFetcher) markHeadTried(symbol string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headTried[symbol] {
		return false
	}
	f.headTried[symbol] = true
	return true
}

// ---------------------------------------------------------------------------
// MemoryCache: in-process TTL cache of whole series.
// ---------------------------------------------------------------------------

// DefaultMemoryTTL is how long a daily series stays fresh in a MemoryCache.
const DefaultMemoryTTL = 5 * time.Minute

type memoryEntry struct {
	series  domain.PriceSeries
	fetched time.Time
}

// MemoryCache keeps recently served series keyed by symbol and period.
// Concurrent requests for the same key share a single upstream call.
type MemoryCache struct {
	next backtest.SeriesProvider
	ttl  time.Duration
	now  func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]memoryEntry
	hits    int64
	fetches int64
}

// NewMemoryCache wraps next with a TTL cache. ttl <= 0 uses DefaultMemoryTTL.
func NewMemoryCache(next backtest.SeriesProvider, ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	return &MemoryCache{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Series returns a cached series when fresh, otherwise fetches it. Errors
// are not cached.
func (c *MemoryCache) Series(ctx context.Context, symbol, period string) (domain.PriceSeries, error) {
	key := strings.ToUpper(symbol) + ":" + strings.ToLower(period)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.fetched) <= c.ttl {
		c.hits++
		c.mu.Unlock()
		return e.series, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		s, err := c.next.Series(ctx, symbol, period)
		if err != nil {
			return domain.PriceSeries{}, err
		}
		c.mu.Lock()
		c.entries[key] = memoryEntry{series: s, fetched: c.now()}
		c.fetches++
		c.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return domain.PriceSeries{}, err
	}
	return v.(domain.PriceSeries), nil
}

// Stats returns the number of cache hits and upstream fetches so far.
func (c *MemoryCache) Stats() (hits, fetches int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.fetches
}

// Purge drops every cached entry.
func (c *MemoryCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
}
