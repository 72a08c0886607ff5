package shoal

import (
	"context"
	"time"
)

/*
Cache defines the PUBLIC API of the cache. It is a contract that guarantees
certain behaviors without exposing internals: sharding, eviction,
expiration, concurrency, data loading, and write propagation are all hidden
behind this interface.
*/
type Cache interface {

	/*
		Lookup returns the value for key if it is present and not expired.
		It never fails and never consults the backing store: a missing or
		expired key simply reports ok=false.

		A hit counts as an access for LRU/LFU and sliding-TTL purposes.
	*/
	Lookup(key string) (value any, ok bool)

	/*
		Get retrieves the value associated with the given key.

		1. If the key exists in cache and is NOT expired:
		   - Return the value immediately (cache hit)

		2. If the key does NOT exist or is expired:
		   - Load the value from the backing store (if a Loader is configured)
		   - Store it in cache
		   - Return the value (cache miss)

		Concurrent loads of the same missing key are collapsed into one
		backing-store call. Get only fails when the Loader fails.
	*/
	Get(ctx context.Context, key string) (any, error)

	/*
		Put stores a key-value pair in the cache.

		- Stores the value in memory
		- Applies the eviction policy if the shard is over capacity
		- Applies the expiration strategy (if configured)
		- Applies the write policy (write-through or write-back)

		Write propagation is best-effort: a failing backing store is logged
		and never fails the in-memory write.

		This version does NOT set an explicit TTL; one may still be applied
		by the configured expiration strategy.
	*/
	Put(ctx context.Context, key string, value any) error

	/*
		PutWithTTL stores a key-value pair with an explicit time-to-live.
		The entry's deadline is now + ttl; after that it is expired. Expired
		keys are removed lazily on access and by the janitor, if one is
		running.
	*/
	PutWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error

	/*
		Remove deletes a key from the cache immediately. It does not touch
		the backing store. Removing a non-existing key is safe.
	*/
	Remove(key string)

	/*
		Clear removes ALL entries and resets eviction bookkeeping. After
		Clear, Lookup reports absence for every key. The backing store is
		untouched.
	*/
	Clear()

	/*
		Expire sets or updates the TTL for an existing key.

		- Key exists: deadline becomes now + ttl, returns true
		- Key missing: nothing happens, returns false
	*/
	Expire(key string, ttl time.Duration) bool

	/*
		TTL returns the remaining time-to-live for a key, with
		Redis-compatible semantics:

		> 0 : duration remaining before expiration
		-1  : key exists but has no TTL
		-2  : key does not exist or is already expired
	*/
	TTL(key string) time.Duration

	// Len returns the number of entries currently stored, including entries
	// that have expired but not yet been removed.
	Len() int

	/*
		Close gracefully shuts down the cache: flushes pending write-back
		operations and stops background goroutines. Call on application
		shutdown.
	*/
	Close()
}

// TTL return codes for missing keys and keys without a deadline.
const (
	TTLNone    = time.Duration(-1)
	TTLMissing = time.Duration(-2)
)
