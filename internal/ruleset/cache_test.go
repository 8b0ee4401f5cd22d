package ruleset

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMiniredisClient(t *testing.T) *redis.Client {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	return redis.NewClient(&redis.Options{Addr: server.Addr()})
}

func TestCacheInvalidateForcesReload(t *testing.T) {
	client := newMiniredisClient(t)
	cache := NewCache(nil, client)
	cache.ttl = time.Hour

	seeded := Ruleset{ID: ActiveRulesetID, MinPilots: 3}
	cache.mu.Lock()
	cache.cached = &seeded
	cache.cacheAt = time.Now()
	cache.mu.Unlock()

	cached, ok := cache.peek()
	require.True(t, ok)
	require.Equal(t, uint16(3), cached.MinPilots)

	cache.Invalidate()
	_, ok = cache.peek()
	require.False(t, ok)
}

func TestPublishSubscribeInvalidatesAcrossReplicas(t *testing.T) {
	client := newMiniredisClient(t)
	cache := NewCache(nil, client)
	cache.ttl = time.Hour

	seeded := Ruleset{ID: ActiveRulesetID, MinPilots: 1}
	cache.mu.Lock()
	cache.cached = &seeded
	cache.cacheAt = time.Now()
	cache.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	go func() {
		close(ready)
		cache.Subscribe(ctx)
	}()
	<-ready
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, cache.Publish(context.Background()))

	require.Eventually(t, func() bool {
		_, ok := cache.peek()
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func (c *Cache) peek() (Ruleset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cached == nil {
		return Ruleset{}, false
	}
	return *c.cached, true
}
