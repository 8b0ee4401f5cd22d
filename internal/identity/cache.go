package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"battlescope/pkg/database"

	"github.com/redis/go-redis/v9"
)

// l1Entry is a single bounded-TTL in-process cache slot, grounded on the
// evegateway client's CacheEntry/expiry shape but keyed on a resolved Record
// rather than a raw HTTP body.
type l1Entry struct {
	record  Record
	expires time.Time
}

// l1Cache is the in-process tier: cheap and unbounded in count. Every entry
// carries its own expiry; get ignores an expired entry and the next set for
// that key replaces it, but nothing ever deletes one.
type l1Cache struct {
	mu      sync.RWMutex
	entries map[string]l1Entry
}

func newL1Cache() *l1Cache {
	return &l1Cache{entries: make(map[string]l1Entry)}
}

func (c *l1Cache) get(key string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expires) {
		return Record{}, false
	}
	return entry.record, true
}

func (c *l1Cache) set(key string, record Record, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = l1Entry{record: record, expires: time.Now().Add(ttl)}
}

// l2Cache is the cross-replica tier, backed by Redis. Every replica's L1
// miss falls through here before an HTTP round-trip is attempted.
type l2Cache struct {
	redis *database.Redis
}

func newL2Cache(redis *database.Redis) *l2Cache {
	return &l2Cache{redis: redis}
}

func cacheKey(class ResourceClass, id int64) string {
	return fmt.Sprintf("identity:cache:%s:%d", class, id)
}

func (c *l2Cache) get(ctx context.Context, class ResourceClass, id int64) (Record, bool, error) {
	if c.redis == nil {
		return Record{}, false, nil
	}
	raw, err := c.redis.Get(ctx, cacheKey(class, id))
	if err != nil {
		if err == redis.Nil {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return Record{}, false, fmt.Errorf("identity: unmarshal cached record: %w", err)
	}
	return record, true, nil
}

func (c *l2Cache) set(ctx context.Context, record Record) error {
	if c.redis == nil {
		return nil
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("identity: marshal record for cache: %w", err)
	}
	return c.redis.Set(ctx, cacheKey(record.Category, record.ID), payload, record.Category.ttl())
}
