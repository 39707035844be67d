package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetSet(t *testing.T) {
	c := NewCache(10, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", []float32{1, 2, 3})
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, got)
	assert.Equal(t, 1, c.Len())
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache(10, 10*time.Millisecond)

	c.Set("a", []float32{1})
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok, "expired entries must not be returned")
	assert.Equal(t, 0, c.Len(), "expired entries are evicted on Get")
}

func TestCacheLRUEviction(t *testing.T) {
	c := NewCache(2, time.Minute)

	c.Set("a", []float32{1})
	c.Set("b", []float32{2})

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", []float32{3})
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get("b")
	assert.False(t, ok, "least-recently-touched entry must be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCacheSetExistingRefreshes(t *testing.T) {
	c := NewCache(2, time.Minute)

	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Set("a", []float32{9})
	c.Set("c", []float32{3})

	got, ok := c.Get("a")
	require.True(t, ok, "re-set entry must survive eviction")
	assert.Equal(t, []float32{9}, got)

	_, ok = c.Get("b")
	assert.False(t, ok)
}
