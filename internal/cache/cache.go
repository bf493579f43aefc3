package cache

import (
	"context"
	"time"

	"github.com/otakuhaven/otakuback/internal/metrics"
)

// Cache combines Tier A (fast, lossy) and Tier B (durable, SWR) into the
// single lookup path plugin invocations use: check memory first, fall back
// to the durable cache, and let the caller decide what to do on a full miss.
type Cache struct {
	Memory  *Memory
	Durable *Durable
}

// New builds a two-tier cache over an already-open store.
func New(memory *Memory, durable *Durable) *Cache {
	return &Cache{Memory: memory, Durable: durable}
}

// GetMemory checks Tier A only, recording a hit/miss metric per category.
func (c *Cache) GetMemory(cat Category, key string) (any, bool) {
	v, ok := c.Memory.Get(cat, key)
	if ok {
		metrics.CacheTierAHits.WithLabelValues(string(cat), "hit").Inc()
	} else {
		metrics.CacheTierAHits.WithLabelValues(string(cat), "miss").Inc()
	}
	return v, ok
}

// PutMemory stores a value in Tier A only; callers that also want Tier B
// durability call PutDurable explicitly, since not every Tier A write
// (e.g. a hot search result) is worth persisting across restarts.
func (c *Cache) PutMemory(cat Category, key string, value any) {
	c.Memory.Put(cat, key, value)
}

// GetDurable reads Tier B, reporting freshness so the caller can serve a
// stale value while triggering a background refresh.
func (c *Cache) GetDurable(ctx context.Context, cat Category, key string) (*Result, error) {
	return c.Durable.Get(ctx, string(cat), key)
}

// PutDurable upserts Tier B.
func (c *Cache) PutDurable(ctx context.Context, cat Category, key string, blob []byte, ttl time.Duration) error {
	return c.Durable.Put(ctx, string(cat), key, blob, ttl)
}
