package shard

import (
	"sync"

	"github.com/tidemark-io/shoal/eviction"
)

/*
This file defines what a "Shard" is. A shard is a small, independent piece of
the cache. Instead of one big cache behind one big lock, we split the cache
into many shards. Each shard:
- Holds some portion of the data
- Has its own eviction logic
- Has its own lock for writes

Reads stay lock-free through the copy-on-write store; only writers contend,
and only within a single shard.
*/

type Shard struct {

	// Store holds the actual key → value data for this shard. This is NOT a
	// regular map; it is a copy-on-write store that allows lock-free reads.
	Store Store

	// Eviction controls which key should be removed when this shard runs out
	// of space. Each shard has its OWN eviction policy instance to avoid
	// shared state and contention.
	Eviction eviction.Policy

	// EvictMu protects write operations on this shard.
	// Reads are lock-free; writes are serialized.
	EvictMu sync.Mutex
}

func New(ev eviction.Policy) *Shard {
	return &Shard{
		Store:    NewCOWStore(),
		Eviction: ev,
	}
}
