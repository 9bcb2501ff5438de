package pco

import (
	"fmt"
	"sync"
	"time"

	"github.com/door-schedule-sync/backend/internal/schedule"
)

// windowCache holds the last fetched result per normalized fetch window,
// plus the counters surfaced on the status page. One mutex covers both;
// this is the only shared state between a sync pass and dashboard preview
// requests.
type windowCache struct {
	mu        sync.Mutex
	entries   map[string]cacheEntry
	lastFetch map[string]time.Time
	stats     cacheStats
}

type cacheEntry struct {
	fetchedAt time.Time
	items     []schedule.Event
}

type cacheStats struct {
	cacheHitReturns         int
	minIntervalCacheReturns int
	liveWindowFetches       int
	eventInstanceRequests   int
	resourceBookingRequests int
	rateLimitFallbacks      int
	lastLiveFetchAt         *time.Time
	lastCacheHitAt          *time.Time
	lastFallbackAt          *time.Time
}

func newWindowCache() *windowCache {
	return &windowCache{
		entries:   make(map[string]cacheEntry),
		lastFetch: make(map[string]time.Time),
	}
}

// windowKey truncates the window bounds to the minute so repeated calls
// within the same minute share a cache slot.
func windowKey(from, to time.Time, maxItems int) string {
	return fmt.Sprintf("%s|%s|%d",
		from.UTC().Truncate(time.Minute).Format(time.RFC3339),
		to.UTC().Truncate(time.Minute).Format(time.RFC3339),
		maxItems)
}

// lookup returns a cached result when it is fresh enough, or when a fetch
// happened too recently to go live again.
func (c *windowCache) lookup(key string, now time.Time, cacheSeconds, minIntervalSeconds int) ([]schedule.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	age := now.Sub(entry.fetchedAt)
	if age <= time.Duration(cacheSeconds)*time.Second {
		c.stats.cacheHitReturns++
		c.stats.lastCacheHitAt = &now
		return append([]schedule.Event(nil), entry.items...), true
	}

	if last, ok := c.lastFetch[key]; ok && now.Sub(last) < time.Duration(minIntervalSeconds)*time.Second {
		c.stats.cacheHitReturns++
		c.stats.minIntervalCacheReturns++
		c.stats.lastCacheHitAt = &now
		return append([]schedule.Event(nil), entry.items...), true
	}

	return nil, false
}

// fallback returns the last good result for a window after a rate-limit
// response, if one exists.
func (c *windowCache) fallback(key string, now time.Time) ([]schedule.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.stats.rateLimitFallbacks++
	c.stats.lastFallbackAt = &now
	return append([]schedule.Event(nil), entry.items...), true
}

func (c *windowCache) store(key string, now time.Time, items []schedule.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{fetchedAt: now, items: append([]schedule.Event(nil), items...)}
	c.lastFetch[key] = now
}

func (c *windowCache) countLiveFetch(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.liveWindowFetches++
	c.stats.lastLiveFetchAt = &now
}

func (c *windowCache) countInstanceRequest() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.eventInstanceRequests++
}

func (c *windowCache) countResourceBookingRequest() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.resourceBookingRequests++
}

func (c *windowCache) statsSnapshot() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]any{
		"cacheHitReturns":         c.stats.cacheHitReturns,
		"minIntervalCacheReturns": c.stats.minIntervalCacheReturns,
		"liveWindowFetches":       c.stats.liveWindowFetches,
		"eventInstanceRequests":   c.stats.eventInstanceRequests,
		"resourceBookingRequests": c.stats.resourceBookingRequests,
		"rateLimitFallbacks":      c.stats.rateLimitFallbacks,
		"cacheKeys":               len(c.entries),
	}
	if c.stats.lastLiveFetchAt != nil {
		out["lastLiveFetchAt"] = c.stats.lastLiveFetchAt.Format(time.RFC3339)
	}
	if c.stats.lastCacheHitAt != nil {
		out["lastCacheHitAt"] = c.stats.lastCacheHitAt.Format(time.RFC3339)
	}
	if c.stats.lastFallbackAt != nil {
		out["lastFallbackAt"] = c.stats.lastFallbackAt.Format(time.RFC3339)
	}
	return out
}
