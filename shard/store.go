package shard

import (
	"sync/atomic"

	"github.com/tidemark-io/shoal/types"
)

/*
This file defines how data is actually stored inside a shard. This is NOT a
normal map:
- Reads should be very fast
- Reads should NOT require locks
- Writes are less frequent and can afford extra work

To achieve this, we use a technique called "Copy-On-Write" (COW).
*/

// Store is the interface used by a shard to hold cache entries.
type Store interface {

	// Get retrieves an entry by key.
	Get(string) (*types.CacheEntry, bool)

	// Put inserts or replaces an entry.
	Put(string, *types.CacheEntry)

	// Delete removes an entry.
	Delete(string)

	// Size returns how many entries are stored.
	Size() int64

	// Snapshot returns the current immutable map of entries.
	// Callers must not mutate it. Used by the janitor and by Clear.
	Snapshot() map[string]*types.CacheEntry

	// Reset removes all entries.
	Reset()
}

/*
cowStore is a Copy-On-Write implementation of Store.

- Readers always see an immutable snapshot
- Writers create a NEW copy of the map
- The new map replaces the old one atomically

This gives us lock-free reads and a very simple concurrency model. The
owning shard serializes writers with its write lock.
*/
type cowStore struct {
	// data holds the actual map[string]*CacheEntry. atomic.Value lets us
	// swap the entire map atomically while readers access it without locks.
	data atomic.Value

	// size tracks the number of entries so we don't count map entries
	// on every Size call.
	size atomic.Int64
}

func NewCOWStore() *cowStore {
	s := &cowStore{}
	s.data.Store(make(map[string]*types.CacheEntry))
	return s
}

// Get retrieves an entry from the store.
func (s *cowStore) Get(key string) (*types.CacheEntry, bool) {
	m := s.data.Load().(map[string]*types.CacheEntry)
	ent, ok := m[key]
	return ent, ok
}

/*
Put inserts or updates an entry in the store. This is where copy-on-write
happens:

1. Load the current map
2. Create a NEW map
3. Copy all existing entries
4. Add the new entry
5. Atomically replace the old map
6. Update the size
*/
func (s *cowStore) Put(key string, ent *types.CacheEntry) {
	old := s.data.Load().(map[string]*types.CacheEntry)

	n := make(map[string]*types.CacheEntry, len(old)+1)
	for k, v := range old {
		n[k] = v
	}
	n[key] = ent

	s.data.Store(n)
	s.size.Store(int64(len(n)))
}

// Delete removes an entry from the store. Just like Put, this uses
// copy-on-write.
func (s *cowStore) Delete(key string) {
	old := s.data.Load().(map[string]*types.CacheEntry)
	if _, ok := old[key]; !ok {
		return
	}

	n := make(map[string]*types.CacheEntry, len(old))
	for k, v := range old {
		if k != key {
			n[k] = v
		}
	}

	s.data.Store(n)
	s.size.Store(int64(len(n)))
}

// Size returns how many entries are in the store.
func (s *cowStore) Size() int64 {
	return s.size.Load()
}

// Snapshot returns the current immutable map. Callers must not mutate it.
func (s *cowStore) Snapshot() map[string]*types.CacheEntry {
	return s.data.Load().(map[string]*types.CacheEntry)
}

// Reset atomically replaces the map with an empty one.
func (s *cowStore) Reset() {
	s.data.Store(make(map[string]*types.CacheEntry))
	s.size.Store(0)
}
