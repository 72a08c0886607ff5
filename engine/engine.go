package engine

import (
	"context"
	"time"

	"github.com/tidemark-io/shoal/expiration"
	"github.com/tidemark-io/shoal/refresh"
	"github.com/tidemark-io/shoal/types"
	"github.com/tidemark-io/shoal/writepolicy"
)

/*
Engine is the "brain" of the cache system. It is responsible for the
BEHAVIOR of the cache, not storage. This is the policy layer.

It decides:
- When data is expired
- How TTL is updated on reads/writes
- When refresh hooks are triggered
- How data is loaded on cache miss
- How writes are propagated to the backing store
- How metrics are recorded

It does NOT store data, handle sharding, locking, or eviction order.
*/
type Engine struct {

	// Expiration controls when a cache entry is considered too old.
	// If nil, entries only expire through explicit per-entry TTLs.
	Expiration expiration.Strategy

	// Refresh is an optional hook that runs when data is read. Used to
	// refresh data in the background without blocking the current request.
	Refresh refresh.Hook

	// Loader is how the cache talks to the outside world when it does NOT
	// have the data. A database call, an API call, a file read. If nil, a
	// miss is simply a miss.
	Loader types.Loader

	// WritePolicy decides what happens when data is written to the cache:
	// write-through (synchronous) or write-back (asynchronous). If nil,
	// cache writes stay in memory only.
	WritePolicy writepolicy.WritePolicy

	// Metrics records hits, misses, evictions, expirations, refreshes.
	// Never nil; defaults to NoopMetrics.
	Metrics types.Metrics
}

// New creates an Engine. A nil metrics is replaced with NoopMetrics so the
// rest of the codebase never has to nil-check it.
func New(
	exp expiration.Strategy,
	refresh refresh.Hook,
	loader types.Loader,
	writePolicy writepolicy.WritePolicy,
	metrics types.Metrics,
) *Engine {
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}

	return &Engine{
		Expiration:  exp,
		Refresh:     refresh,
		Loader:      loader,
		WritePolicy: writePolicy,
		Metrics:     metrics,
	}
}

// IsExpired checks whether a cache entry is expired right now. Entries with
// an explicit deadline expire even without a configured strategy.
func (e *Engine) IsExpired(ent *types.CacheEntry) bool {
	now := time.Now()
	if e.Expiration != nil {
		return e.Expiration.IsExpired(ent, now)
	}
	return !ent.ExpireAt.IsZero() && now.After(ent.ExpireAt)
}

/*
OnRead is called every time the cache successfully returns a value.

Typical things that happen here:
- Update TTL for expire-after-access strategies
- Trigger a background refresh
*/
func (e *Engine) OnRead(key string, ent *types.CacheEntry) {
	now := time.Now()

	// Some expiration strategies (like sliding TTL) care about reads.
	if e.Expiration != nil {
		e.Expiration.OnAccess(ent, now)
	} else {
		ent.LastAccessedAt = now
	}

	// Refresh is optional and best-effort. It must never slow down the
	// read path.
	if e.Refresh != nil {
		e.Refresh.OnRead(key, ent)
	}
}

/*
OnWrite is called whenever something is written to the cache. It applies
write-related expiration rules and forwards the write to the backing store
per the configured write policy.

Write propagation is independent of TTL: an entry with an explicit deadline
still reaches the backing store.
*/
func (e *Engine) OnWrite(ctx context.Context, ent *types.CacheEntry) {
	now := time.Now()

	if e.Expiration != nil {
		e.Expiration.OnWrite(ent, now)
	}

	if e.WritePolicy != nil {
		e.WritePolicy.OnWrite(ctx, ent.Key, ent.Value)
	}
}

// Load fetches a missing key from the backing store. Returns (nil, nil)
// when no loader is configured.
func (e *Engine) Load(ctx context.Context, key string) (any, error) {
	if e.Loader == nil {
		return nil, nil
	}
	return e.Loader.Load(ctx, key)
}

// Close flushes the write policy. Pending write-back operations complete
// before Close returns.
func (e *Engine) Close() {
	if e.WritePolicy != nil {
		e.WritePolicy.Close()
	}
}
