package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMissingKey(t *testing.T) {
	c := NewTTLCache[int](time.Minute, nil)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestSetThenGet(t *testing.T) {
	c := NewTTLCache[string](time.Minute, nil)
	c.Set("key", "value")

	got, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, "value", got)
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewTTLCache[float64](10*time.Second, func() time.Time { return now })

	c.Set("price", 1.25)

	now = now.Add(10 * time.Second)
	_, ok := c.Get("price")
	assert.True(t, ok, "an entry exactly at the TTL boundary is still fresh")

	now = now.Add(time.Nanosecond)
	_, ok = c.Get("price")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entries are dropped on read")
}

func TestOverwriteResetsTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewTTLCache[int](10*time.Second, func() time.Time { return now })

	c.Set("key", 1)
	now = now.Add(8 * time.Second)
	c.Set("key", 2)
	now = now.Add(8 * time.Second)

	got, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, 2, got)
}
