package utils

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache_SetGet(t *testing.T) {
	c := NewTTLCache[string](time.Minute)
	c.Set("k", "v")

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestTTLCache_Expiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := NewTTLCache[int](5 * time.Minute)
	c.SetClock(func() time.Time { return now })

	c.Set("k", 42)

	now = now.Add(5*time.Minute - time.Second)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	now = now.Add(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestTTLCache_NoTTL(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewTTLCache[int](0)
	c.SetClock(func() time.Time { return now })
	c.Set("k", 1)

	now = now.Add(24 * 365 * time.Hour)
	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestTTLCache_DeleteAndClear(t *testing.T) {
	c := NewTTLCache[int](time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestTTLCache_Concurrent(t *testing.T) {
	c := NewTTLCache[int](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set("k", i)
			c.Get("k")
		}(i)
	}
	wg.Wait()

	_, ok := c.Get("k")
	assert.True(t, ok)
}
