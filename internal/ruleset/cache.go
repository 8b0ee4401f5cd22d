package ruleset

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const invalidationChannel = "ruleset:invalidate"

// DefaultTTL is the cache's fallback freshness bound when pub/sub
// invalidation is unavailable or missed.
const DefaultTTL = 300 * time.Second

// Cache serves the single active ruleset from memory, falling back to the
// store on a miss or TTL expiry, and drops its cached copy the instant any
// replica publishes an invalidation. Pub/sub outages degrade freshness to
// TTL; they never cause a stale ruleset to be served past the TTL window.
type Cache struct {
	store *Store
	redis *redis.Client
	ttl   time.Duration

	mu      sync.RWMutex
	cached  *Ruleset
	cacheAt time.Time
}

func NewCache(store *Store, redisClient *redis.Client) *Cache {
	return &Cache{store: store, redis: redisClient, ttl: DefaultTTL}
}

// Get serves from cache if fresh, otherwise reloads from the store and
// re-caches.
func (c *Cache) Get(ctx context.Context) (Ruleset, error) {
	c.mu.RLock()
	if c.cached != nil && time.Since(c.cacheAt) < c.ttl {
		r := *c.cached
		c.mu.RUnlock()
		return r, nil
	}
	c.mu.RUnlock()

	r, err := c.store.Get(ctx)
	if err != nil {
		return Ruleset{}, err
	}

	c.mu.Lock()
	c.cached = &r
	c.cacheAt = time.Now()
	c.mu.Unlock()

	return r, nil
}

// Invalidate drops the cached copy unconditionally, forcing the next Get to
// reload from the store.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

// Publish broadcasts an invalidation to every subscribing replica. C7 calls
// this after a successful Update.
func (c *Cache) Publish(ctx context.Context) error {
	return c.redis.Publish(ctx, invalidationChannel, "invalidate").Err()
}

// Subscribe runs until ctx is cancelled, dropping the local cache on every
// invalidation message. Pub/sub connection failures are logged and retried
// with backoff; correctness during an outage is preserved by the TTL.
func (c *Cache) Subscribe(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		dropped := c.consumeUntilDropped(ctx)
		if !dropped {
			return
		}

		slog.Warn("ruleset: invalidation subscription dropped, reconnecting", "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// consumeUntilDropped subscribes and processes invalidation messages until
// the channel closes (true) or the context is cancelled (false).
func (c *Cache) consumeUntilDropped(ctx context.Context) bool {
	sub := c.redis.Subscribe(ctx, invalidationChannel)
	defer sub.Close()
	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return false
		case _, ok := <-ch:
			if !ok {
				return true
			}
			c.Invalidate()
		}
	}
}
