package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache_SetThenGetHits(t *testing.T) {
	c := New(10, 0)
	defer c.Stop()

	c.Set("a", 42, time.Minute)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
}

func TestTTLCache_ExpiredEntryMisses(t *testing.T) {
	c := New(10, 0)
	defer c.Stop()

	c.Set("a", 1, -time.Second)
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestTTLCache_MissingKeyMisses(t *testing.T) {
	c := New(10, 0)
	defer c.Stop()

	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestTTLCache_EvictsLeastRecentlyAccessedWhenFull(t *testing.T) {
	c := New(2, 0)
	defer c.Stop()

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	// touch "a" so "b" becomes the least recently accessed
	c.Get("a")

	c.Set("c", 3, time.Minute)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestTTLCache_ClearResetsEntriesAndCounters(t *testing.T) {
	c := New(10, 0)
	defer c.Stop()

	c.Set("a", 1, time.Minute)
	c.Get("a")
	c.Get("missing")

	c.Clear()

	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Entries)
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)

	_, ok := c.Get("a")
	assert.False(t, ok)
}
