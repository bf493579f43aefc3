package cache

import (
	"context"
	"time"

	"github.com/otakuhaven/otakuback/internal/metrics"
	"github.com/otakuhaven/otakuback/internal/store"
)

// Durable is the Tier B facade over internal/store's durable_cache table: a
// stale-while-revalidate cache whose read path reports freshness instead of
// hiding staleness from the caller (spec.md §4.2).
type Durable struct {
	st *store.Store
}

// NewDurable wraps a store for Tier B access.
func NewDurable(st *store.Store) *Durable {
	return &Durable{st: st}
}

// Result is what a Tier B read hands back: the blob plus enough to decide
// whether to serve it as-is or kick off a background refresh.
type Result struct {
	Blob      []byte
	Category  string
	IsFresh   bool
	AgeSecond int64
}

// Get reads a durable cache entry. A nil, nil return means a genuine miss;
// Get never creates a row (spec.md §4.2's "pure read" invariant).
func (d *Durable) Get(ctx context.Context, category, key string) (*Result, error) {
	e, err := d.st.GetDurableCache(ctx, key)
	if err != nil {
		return nil, err
	}
	if e == nil {
		metrics.CacheTierBReads.WithLabelValues(category, "miss").Inc()
		return nil, nil
	}
	now := time.Now()
	fresh := e.IsFresh(now)
	freshness := "stale"
	if fresh {
		freshness = "fresh"
	}
	metrics.CacheTierBReads.WithLabelValues(category, freshness).Inc()
	return &Result{Blob: e.Blob, Category: e.Category, IsFresh: fresh, AgeSecond: e.AgeSeconds(now)}, nil
}

// Put upserts a durable entry by key; writing the same value twice is a
// no-op from the caller's point of view (spec.md §4.2 idempotent writes).
func (d *Durable) Put(ctx context.Context, category, key string, blob []byte, ttl time.Duration) error {
	return d.st.PutDurableCache(ctx, category, key, blob, int64(ttl/time.Second))
}

// Sweep deletes rows older than 3x their TTL. No loop in cmd/otakuback
// calls it; rows are removed only when a caller invokes Sweep.
func (d *Durable) Sweep(ctx context.Context) (int64, error) {
	return d.st.SweepDurableCache(ctx)
}
