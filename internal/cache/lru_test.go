package cache

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newClockedCache[T any](maxSize int, ttl time.Duration) (*LRUCache[T], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[T](maxSize, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newClockedCache[string](2, time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", "alpha")
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", got)

	c.Set("a", "again")
	got, _ = c.Get("a")
	assert.Equal(t, "again", got)
	assert.Equal(t, Stats{Size: 1, Hits: 2, Misses: 1}, c.Stats())
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newClockedCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clock := newClockedCache[int](10, time.Minute)
	c.Set("a", 1)
	clock.advance(30 * time.Second)
	c.Set("b", 2)

	clock.advance(45 * time.Second)
	_, ok := c.Get("a")
	assert.False(t, ok, "a expired")

	assert.Equal(t, 0, c.CleanExpired())
	clock.advance(time.Minute)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 0, c.Size())
}

func TestLRUCache_DeleteAndPurge(t *testing.T) {
	c, _ := newClockedCache[int](10, time.Minute)
	for i := 0; i < 5; i++ {
		c.Set(strconv.Itoa(i), i)
	}
	c.Delete("3")
	c.Delete("missing")
	assert.Equal(t, 4, c.Size())

	c.Purge()
	assert.Equal(t, 0, c.Size())
	c.Set("x", 1)
	assert.Equal(t, 1, c.Size())
}

func TestLRUCache_MinimumSize(t *testing.T) {
	c := NewLRUCache[int](0, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, 1, c.Size())
}

func TestLRUCache_Concurrent(t *testing.T) {
	c := NewLRUCache[int](50, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := strconv.Itoa((g*200 + i) % 80)
				c.Set(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Size(), 50)
}

func TestManager_SweepAndLifecycle(t *testing.T) {
	c, clock := newClockedCache[int](10, time.Second)
	c.Set("a", 1)
	clock.advance(2 * time.Second)

	m := NewManager()
	m.Register(c)
	assert.Equal(t, 1, m.Sweep())

	m.StartCleanup(time.Millisecond)
	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}
