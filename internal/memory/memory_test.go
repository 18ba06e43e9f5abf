package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheHitMissInsertEviction(t *testing.T) {
	c := NewCache[int](2, 0)

	_, ok := c.Get("a")
	require.False(t, ok)
	require.Equal(t, uint64(1), c.Stats().Misses)

	c.Insert("a", 1)
	c.Insert("b", 2)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.Equal(t, uint64(1), c.Stats().Hits)

	// b is now LRU (a was touched); inserting c evicts b.
	c.Insert("c", 3)
	require.Equal(t, 2, c.Len())
	_, ok = c.Get("b")
	require.False(t, ok)
	require.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestCacheOverwriteCountsAsEviction(t *testing.T) {
	c := NewCache[int](4, 0)
	c.Insert("a", 1)
	c.Insert("a", 2)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 2, v)
	require.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestCacheExpiration(t *testing.T) {
	c := NewCache[int](4, time.Millisecond)
	c.Insert("a", 1)
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("a")
	require.False(t, ok)
	require.Equal(t, uint64(1), c.Stats().Expirations)
}

func TestBufferPoolReuseAndDrop(t *testing.T) {
	p := NewBufferPool(1, 16)
	b := p.GetBuffer()
	require.Equal(t, uint64(1), p.Stats().Allocations)

	p.ReturnBuffer(append(b, 1, 2, 3))
	require.Equal(t, uint64(1), p.Stats().Returns)

	reused := p.GetBuffer()
	require.Equal(t, uint64(1), p.Stats().Hits)
	require.Len(t, reused, 0)

	p.ReturnBuffer(reused)
	p.ReturnBuffer(make([]byte, 0))
	require.Equal(t, uint64(1), p.Stats().Drops)
}

func TestRegistryAggregateStats(t *testing.T) {
	reg := NewRegistry(10)
	cache := NewCache[string](4, 0)
	pool := NewBufferPool(2, 16)
	RegisterCache(reg, "bytecode", cache)
	reg.RegisterBufferPool("scratch", pool)

	cache.Insert("x", "y")
	pool.GetBuffer()

	stats := reg.AggregateStats()
	require.Len(t, stats, 2)

	byName := make(map[string]NamedStats)
	for _, s := range stats {
		byName[s.Name] = s
	}
	require.Equal(t, uint64(1), byName["bytecode"].Cache.Inserts)
	require.Equal(t, uint64(1), byName["scratch"].BufferPool.Allocations)
}

type fakeRedisClient struct {
	sets map[string][]byte
}

func (f *fakeRedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.sets[key] = value
	return nil
}
func (f *fakeRedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	return f.sets[key], nil
}

func TestRedisMirrorPublishOnce(t *testing.T) {
	reg := NewRegistry(5)
	cache := NewCache[string](4, 0)
	RegisterCache(reg, "bytecode", cache)
	cache.Insert("x", "y")

	client := &fakeRedisClient{sets: make(map[string][]byte)}
	mirror := NewRedisMirror(client, "test:", time.Minute, reg)
	require.NoError(t, mirror.PublishOnce(context.Background()))
	require.Contains(t, client.sets, "test:stats")
}
