package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_GetSet(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache[string](time.Minute)
	c.now = func() time.Time { return now }

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("browser", "/usr/bin/chromium")
	got, ok := c.Get("browser")
	assert.True(t, ok)
	assert.Equal(t, "/usr/bin/chromium", got)

	now = now.Add(time.Minute)
	_, ok = c.Get("browser")
	assert.True(t, ok, "entry is valid up to the TTL")

	now = now.Add(time.Second)
	_, ok = c.Get("browser")
	assert.False(t, ok, "entry expires after the TTL")

	c.Set("browser", "")
	got, ok = c.Get("browser")
	assert.True(t, ok, "empty values are cached")
	assert.Empty(t, got)

	c.Delete("browser")
	_, ok = c.Get("browser")
	assert.False(t, ok)
}
