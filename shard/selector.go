package shard

import "github.com/cespare/xxhash/v2"

/*
This file decides HOW a cache key is assigned to a shard. If every request
went to the same shard, that shard would become a bottleneck. Shard selection
is about load balancing and avoiding hot spots under concurrency.
*/

/*
Selector is the interface that decides which shard should handle a given
key. The cache does not care HOW this decision is made; different strategies
can be plugged in.

Invariant: for a key that is currently stored, Select must return the shard
that holds it. Reads and writes for the same key have to meet.
*/
type Selector interface {
	Select(string, []*Shard) *Shard
}

// HashSelector assigns each key to exactly one shard by hashing the key.
// This is the default: deterministic, cheap, and good enough when keys are
// well distributed.
type HashSelector struct{}

func (HashSelector) Select(key string, shards []*Shard) *Shard {
	return shards[xxhash.Sum64String(key)%uint64(len(shards))]
}

/*
PowerOfTwoSelector implements the "power of two choices" placement strategy:
hash the key twice to obtain two candidate shards, then place it on the one
holding fewer entries.

The catch for a cache is that lookups must land on the same shard as the
write did, and shard sizes change over time. So the choice is made ONCE, on
the first time a key is seen: both candidates are probed on reads, and the
less-loaded candidate is used for new writes. Probing two shards keeps reads
lock-free and O(1) while spreading hot insert bursts.
*/
type PowerOfTwoSelector struct{}

// candidates returns the two candidate shards for a key. The second hash
// salts the key so the two indexes are independent.
func (PowerOfTwoSelector) candidates(key string, shards []*Shard) (*Shard, *Shard) {
	n := uint64(len(shards))
	h1 := xxhash.Sum64String(key)

	d := xxhash.New()
	d.WriteString(key)
	d.Write([]byte{0xff})
	h2 := d.Sum64()

	return shards[h1%n], shards[h2%n]
}

// Select returns the shard that currently holds the key if either candidate
// does, and otherwise the less-loaded candidate.
func (p PowerOfTwoSelector) Select(key string, shards []*Shard) *Shard {
	a, b := p.candidates(key, shards)
	if a == b {
		return a
	}
	if _, ok := a.Store.Get(key); ok {
		return a
	}
	if _, ok := b.Store.Get(key); ok {
		return b
	}
	if a.Store.Size() <= b.Store.Size() {
		return a
	}
	return b
}
