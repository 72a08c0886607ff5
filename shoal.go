// Package shoal is a sharded, bounded in-memory cache with pluggable
// eviction (LRU, LFU, FIFO), TTL expiration, read-through loading,
// write-through/write-back propagation, and refresh-ahead.
package shoal

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tidemark-io/shoal/engine"
	evict "github.com/tidemark-io/shoal/eviction"
	"github.com/tidemark-io/shoal/shard"
	"github.com/tidemark-io/shoal/types"
)

/*
ShardedCache is the main cache implementation. It is the orchestrator that
connects shards, eviction, expiration, loading, write policies, and metrics.
*/
type ShardedCache struct {
	// shards are the actual storage units. Each shard is an independent
	// mini-cache.
	shards []*shard.Shard

	// engine contains the "rules" of the cache: TTL, refresh, loader,
	// write policy, metrics.
	engine *engine.Engine

	// selector decides which shard a key should go to.
	selector shard.Selector

	// perShard is each shard's share of the total capacity.
	perShard int64

	// onEvict, if set, runs after any entry leaves the cache.
	onEvict types.EvictionCallback

	logger *slog.Logger

	// sf prevents multiple goroutines from loading the same key from the
	// backing store simultaneously.
	sf singleflight.Group

	// janitor lifecycle; nil chan when no janitor is running.
	janitorStop chan struct{}
	janitorDone chan struct{}
}

// Option customizes a ShardedCache.
type Option func(*ShardedCache)

// WithSelector replaces the default hash selector.
func WithSelector(s shard.Selector) Option {
	return func(c *ShardedCache) { c.selector = s }
}

// WithEvictionCallback installs a callback that runs after any entry leaves
// the cache (capacity, expiry, Remove, Clear). Useful for releasing
// resources held by cached values.
func WithEvictionCallback(cb types.EvictionCallback) Option {
	return func(c *ShardedCache) { c.onEvict = cb }
}

// WithJanitor starts a background goroutine that sweeps expired entries
// every interval. Without it, expired entries are only removed when
// accessed. The janitor is stopped by Close.
func WithJanitor(interval time.Duration) Option {
	return func(c *ShardedCache) {
		c.janitorStop = make(chan struct{})
		c.janitorDone = make(chan struct{})
		go c.janitor(interval)
	}
}

// WithLogger sets the logger for background activity. The hot paths never
// log.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ShardedCache) { c.logger = logger }
}

// New creates a ShardedCache with the given shard count, total capacity,
// eviction policy, and engine. Capacity is divided evenly across shards;
// each shard holds at least one entry. The capacity bound is exact only for
// shards=1 since each shard enforces its own share.
func New(shards, capacity int, policy evict.PolicyType, eng *engine.Engine, opts ...Option) (*ShardedCache, error) {
	if shards < 1 {
		shards = 1
	}
	if capacity < shards {
		capacity = shards
	}

	s := make([]*shard.Shard, shards)
	for i := range s {
		// Each shard gets its own eviction policy instance.
		p, err := evict.New(policy)
		if err != nil {
			return nil, err
		}
		s[i] = shard.New(p)
	}

	c := &ShardedCache{
		shards:   s,
		engine:   eng,
		selector: shard.HashSelector{},
		perShard: int64(capacity / shards),
		logger:   slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Lookup returns the cached value for key if present and unexpired. It
// never consults the backing store.
func (c *ShardedCache) Lookup(key string) (any, bool) {
	sh := c.selector.Select(key, c.shards)

	ent, ok := sh.Store.Get(key)
	if !ok {
		c.engine.Metrics.Miss()
		return nil, false
	}

	if c.engine.IsExpired(ent) {
		c.engine.Metrics.Expire()
		c.removeEntry(sh, key, ent, types.ReasonExpired)
		return nil, false
	}

	c.engine.Metrics.Hit()
	c.engine.OnRead(key, ent)

	sh.EvictMu.Lock()
	sh.Eviction.OnGet(key)
	sh.EvictMu.Unlock()

	return ent.Value, true
}

// Get retrieves a value, falling back to the backing store on a miss.
func (c *ShardedCache) Get(ctx context.Context, key string) (any, error) {
	sh := c.selector.Select(key, c.shards)

	if ent, ok := sh.Store.Get(key); ok {
		if c.engine.IsExpired(ent) {
			c.engine.Metrics.Expire()
			c.removeEntry(sh, key, ent, types.ReasonExpired)
		} else {
			// Cache hit.
			c.engine.Metrics.Hit()
			c.engine.OnRead(key, ent)

			sh.EvictMu.Lock()
			sh.Eviction.OnGet(key)
			sh.EvictMu.Unlock()

			return ent.Value, nil
		}
	}

	// Cache miss.
	c.engine.Metrics.Miss()

	// If 100 goroutines request the same missing key, only ONE of them
	// loads it from the backing store. The others wait for that result.
	val, err, _ := c.sf.Do(key, func() (any, error) {
		return c.engine.Load(ctx, key)
	})
	if err != nil || val == nil {
		return nil, err
	}

	if err := c.Put(ctx, key, val); err != nil {
		return val, err
	}

	return val, nil
}

// Put stores a value in the cache without an explicit TTL.
func (c *ShardedCache) Put(ctx context.Context, key string, value any) error {
	return c.PutWithTTL(ctx, key, value, 0)
}

// PutWithTTL stores a value with an explicit TTL. ttl <= 0 means no
// per-entry deadline.
func (c *ShardedCache) PutWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	sh := c.selector.Select(key, c.shards)

	now := time.Now()
	ent := &types.CacheEntry{
		Key:            key,
		Value:          value,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	if ttl > 0 {
		ent.ExpireAt = now.Add(ttl)
	}

	// Expiration strategy + write propagation. Outside the shard lock:
	// write-through may block on the backing store.
	c.engine.OnWrite(ctx, ent)

	sh.EvictMu.Lock()

	_, overwrite := sh.Store.Get(key)
	sh.Store.Put(key, ent)
	sh.Eviction.OnPut(key)

	// Capacity check AFTER insertion: a new key that pushes the shard over
	// its share evicts exactly one entry. Overwrites never evict.
	var evictedKey string
	var evictedEnt *types.CacheEntry
	if !overwrite && sh.Store.Size() > c.perShard {
		if k := sh.Eviction.Evict(); k != "" {
			if e, ok := sh.Store.Get(k); ok {
				evictedKey, evictedEnt = k, e
			}
			sh.Store.Delete(k)
			c.engine.Metrics.Eviction()
		}
	}

	sh.EvictMu.Unlock()

	if evictedEnt != nil && c.onEvict != nil {
		c.onEvict(evictedKey, evictedEnt.Value, types.ReasonCapacity)
	}

	return nil
}

// Remove deletes a key from the cache immediately.
func (c *ShardedCache) Remove(key string) {
	sh := c.selector.Select(key, c.shards)

	ent, ok := sh.Store.Get(key)
	if !ok {
		return
	}
	c.removeEntry(sh, key, ent, types.ReasonRemoved)
}

// Clear removes all entries from every shard and resets eviction
// bookkeeping.
func (c *ShardedCache) Clear() {
	for _, sh := range c.shards {
		sh.EvictMu.Lock()
		snap := sh.Store.Snapshot()
		sh.Store.Reset()
		sh.Eviction.Reset()
		sh.EvictMu.Unlock()

		if c.onEvict != nil {
			for k, ent := range snap {
				c.onEvict(k, ent.Value, types.ReasonRemoved)
			}
		}
	}
}

// Expire updates the TTL of an existing key. Returns false if the key is
// missing or already expired.
func (c *ShardedCache) Expire(key string, ttl time.Duration) bool {
	sh := c.selector.Select(key, c.shards)

	sh.EvictMu.Lock()
	defer sh.EvictMu.Unlock()

	ent, ok := sh.Store.Get(key)
	if !ok || c.engine.IsExpired(ent) {
		return false
	}

	ent.ExpireAt = time.Now().Add(ttl)
	return true
}

// TTL returns the remaining time-to-live of a key: >0 remaining, TTLNone
// for a key without a deadline, TTLMissing for a missing or expired key.
func (c *ShardedCache) TTL(key string) time.Duration {
	sh := c.selector.Select(key, c.shards)

	ent, ok := sh.Store.Get(key)
	if !ok {
		return TTLMissing
	}
	if ent.ExpireAt.IsZero() {
		return TTLNone
	}

	d := time.Until(ent.ExpireAt)
	if d <= 0 {
		return TTLMissing
	}
	return d
}

// Len returns the number of stored entries across all shards, counting
// entries that have expired but not yet been swept.
func (c *ShardedCache) Len() int {
	var n int64
	for _, sh := range c.shards {
		n += sh.Store.Size()
	}
	return int(n)
}

// Close stops the janitor and flushes the write policy. Pending write-back
// operations complete before Close returns.
func (c *ShardedCache) Close() {
	if c.janitorStop != nil {
		close(c.janitorStop)
		<-c.janitorDone
		c.janitorStop = nil
	}
	c.engine.Close()
}

// removeEntry deletes key from its shard and fires the eviction callback.
// The entry must have been read from this shard. The expiry decision was
// made on a lock-free read, so the stored entry is re-checked under the
// lock; a concurrent overwrite must not be deleted.
func (c *ShardedCache) removeEntry(sh *shard.Shard, key string, ent *types.CacheEntry, reason types.EvictionReason) {
	sh.EvictMu.Lock()
	cur, ok := sh.Store.Get(key)
	if !ok || cur != ent {
		sh.EvictMu.Unlock()
		return
	}
	sh.Store.Delete(key)
	sh.Eviction.Remove(key)
	sh.EvictMu.Unlock()

	if c.onEvict != nil {
		c.onEvict(key, ent.Value, reason)
	}
}

// janitor periodically sweeps expired entries from all shards.
func (c *ShardedCache) janitor(interval time.Duration) {
	defer close(c.janitorDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.janitorStop:
			return
		case <-ticker.C:
			swept := c.sweep()
			if swept > 0 {
				c.logger.Debug("janitor sweep", "expired", swept)
			}
		}
	}
}

// sweep removes every expired entry. Expiry is re-checked under the shard
// lock so a concurrent overwrite is never swept.
func (c *ShardedCache) sweep() int {
	var swept int
	for _, sh := range c.shards {
		for key := range sh.Store.Snapshot() {
			sh.EvictMu.Lock()
			ent, ok := sh.Store.Get(key)
			expired := ok && c.engine.IsExpired(ent)
			if expired {
				sh.Store.Delete(key)
				sh.Eviction.Remove(key)
			}
			sh.EvictMu.Unlock()

			if expired {
				swept++
				c.engine.Metrics.Expire()
				if c.onEvict != nil {
					c.onEvict(key, ent.Value, types.ReasonExpired)
				}
			}
		}
	}
	return swept
}

var _ Cache = (*ShardedCache)(nil)
