package commute

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanalytics/insights-cli/internal/model"
)

func testEstimate(duration float64, prov model.Provenance) model.RouteEstimate {
	return model.RouteEstimate{
		DurationSeconds: duration,
		DistanceMeters:  duration * 10,
		Provenance:      prov,
		Confidence:      model.ConfidenceMedium,
	}
}

func TestCacheGetPut(t *testing.T) {
	c := NewCache(45 * time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	want := testEstimate(900, model.ProvenanceBulk)
	c.Put("key-1", want)

	got, ok := c.Get("key-1")
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestCacheExpiryAtReadTime(t *testing.T) {
	c := NewCache(45 * time.Minute)
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	c.nowFunc = func() time.Time { return now }

	c.Put("key-1", testEstimate(900, model.ProvenanceBulk))

	now = now.Add(44 * time.Minute)
	_, ok := c.Get("key-1")
	assert.True(t, ok, "entry should be live just inside the TTL")

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("key-1")
	assert.False(t, ok, "expired entry must not be served even before a sweep")
}

func TestCachePutDoesNotOverwriteLiveEntry(t *testing.T) {
	c := NewCache(45 * time.Minute)
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	c.nowFunc = func() time.Time { return now }

	first := testEstimate(900, model.ProvenancePrecise)
	c.Put("key-1", first)
	c.Put("key-1", testEstimate(1200, model.ProvenanceBulk))

	got, ok := c.Get("key-1")
	require.True(t, ok)
	assert.Equal(t, first, got, "live entries are immutable; second put must be a no-op")

	// After expiry the same key accepts a new value.
	now = now.Add(46 * time.Minute)
	second := testEstimate(1200, model.ProvenanceBulk)
	c.Put("key-1", second)

	got, ok = c.Get("key-1")
	require.True(t, ok)
	assert.Equal(t, second, got)
}

func TestCacheSweep(t *testing.T) {
	c := NewCache(45 * time.Minute)
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	c.nowFunc = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		c.Put(fmt.Sprintf("old-%d", i), testEstimate(float64(i), model.ProvenanceBulk))
	}
	now = now.Add(time.Hour)
	for i := 0; i < 5; i++ {
		c.Put(fmt.Sprintf("new-%d", i), testEstimate(float64(i), model.ProvenanceBulk))
	}

	removed := c.Sweep()
	assert.Equal(t, 10, removed)
	assert.Equal(t, 5, c.Stats().Entries)
}

func TestCacheInvalidate(t *testing.T) {
	c := NewCache(45 * time.Minute)
	c.Put("key-1", testEstimate(900, model.ProvenanceBulk))

	c.Invalidate("key-1")
	_, ok := c.Get("key-1")
	assert.False(t, ok)
}

func TestCacheStats(t *testing.T) {
	c := NewCache(45 * time.Minute)
	c.Put("key-1", testEstimate(900, model.ProvenanceBulk))

	_, _ = c.Get("key-1")
	_, _ = c.Get("key-1")
	_, _ = c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}
