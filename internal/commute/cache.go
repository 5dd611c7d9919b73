package commute

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urbanalytics/insights-cli/internal/model"
)

// cacheShardCount spreads keys over independent locks so concurrent reads
// never block writes to other keys. Power of two for cheap modulo.
const cacheShardCount = 32

// Cache is the routing cache: RouteEstimates keyed by query fingerprint,
// sharded for concurrency, with a fixed TTL. Entries are immutable while
// live — a put lands only if no unexpired entry holds the key, so two
// refiner calls racing on the same fingerprint cannot flip an estimate's
// provenance back and forth. Expiry is checked at read time; Sweep exists
// only for space reclamation.
type Cache struct {
	shards [cacheShardCount]cacheShard
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64

	nowFunc func() time.Time
}

type cacheShard struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	estimate  model.RouteEstimate
	createdAt time.Time
	expiresAt time.Time
}

// CacheStats reports cache performance counters.
type CacheStats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// NewCache creates a routing cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	c := &Cache{ttl: ttl, nowFunc: time.Now}
	for i := range c.shards {
		c.shards[i].entries = make(map[string]cacheEntry)
	}
	return c
}

func (c *Cache) shard(key string) *cacheShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &c.shards[h.Sum32()%cacheShardCount]
}

// Get returns the live estimate for a fingerprint, or ok=false on miss.
// Expired entries are never returned, even before a sweep removes them.
func (c *Cache) Get(key string) (model.RouteEstimate, bool) {
	s := c.shard(key)

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || c.nowFunc().After(entry.expiresAt) {
		c.misses.Add(1)
		return model.RouteEstimate{}, false
	}

	c.hits.Add(1)
	return entry.estimate, true
}

// Put stores an estimate under a fingerprint. If a live entry already holds
// the key the put is a no-op: concurrent writers for the same fingerprint
// produce equivalent estimates, and first-write-wins keeps entries
// immutable for their lifetime. Expired entries are overwritten.
func (c *Cache) Put(key string, estimate model.RouteEstimate) {
	now := c.nowFunc()
	s := c.shard(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[key]; ok && now.Before(existing.expiresAt) {
		return
	}
	s.entries[key] = cacheEntry{
		estimate:  estimate,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}
}

// Invalidate removes an entry regardless of expiry.
func (c *Cache) Invalidate(key string) {
	s := c.shard(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Sweep removes expired entries from all shards and returns how many were
// reclaimed. Intended to run periodically; correctness never depends on it.
func (c *Cache) Sweep() int {
	now := c.nowFunc()
	var removed int
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		for key, entry := range s.entries {
			if now.After(entry.expiresAt) {
				delete(s.entries, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Stats returns current cache counters.
func (c *Cache) Stats() CacheStats {
	var entries int
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		entries += len(s.entries)
		s.mu.RUnlock()
	}

	hits := c.hits.Load()
	misses := c.misses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{Entries: entries, Hits: hits, Misses: misses, HitRate: hitRate}
}
