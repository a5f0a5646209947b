package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	c := NewLRUCache[int](2, time.Minute, WithEvictHook(func(k string) { evicted = append(evicted, k) }))

	c.Set("a", 1)
	c.Set("b", 2)
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set("c", 3)

	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, 2, c.Size())
}

func TestLRUFixedTTL(t *testing.T) {
	clk := newClock()
	c := NewLRUCache[string](10, time.Minute, WithClock(clk.Now))
	c.Set("k", "v")

	clk.Advance(50 * time.Second)
	_, ok := c.Get("k")
	require.True(t, ok)

	clk.Advance(20 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "fixed ttl must not be renewed by reads")
}

func TestLRUSlidingTTL(t *testing.T) {
	clk := newClock()
	c := NewLRUCache[string](10, time.Minute, WithClock(clk.Now), WithSlidingExpiry())
	c.Set("k", "v")

	for i := 0; i < 3; i++ {
		clk.Advance(50 * time.Second)
		_, ok := c.Get("k")
		require.True(t, ok, "read %d", i)
	}

	clk.Advance(61 * time.Second)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCleanExpired(t *testing.T) {
	clk := newClock()
	c := NewLRUCache[int](10, time.Minute, WithClock(clk.Now))
	c.Set("old", 1)
	clk.Advance(30 * time.Second)
	c.Set("new", 2)
	clk.Advance(45 * time.Second)

	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 1, c.Size())
}

func TestManagerCleanAll(t *testing.T) {
	clk := newClock()
	c := NewLRUCache[int](10, time.Second, WithClock(clk.Now))
	c.Set("a", 1)
	c.Set("b", 2)

	m := NewManager(nil)
	m.Register("sessions", c)
	clk.Advance(2 * time.Second)

	assert.Equal(t, 2, m.CleanAll())
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
