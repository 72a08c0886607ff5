package eviction

import "fmt"

/*
This file defines how the cache decides what to remove when it runs out of space.
*/

/*
Policy is the interface that all eviction strategies must follow.

This is a set of rules that any eviction algorithm (LRU, LFU, FIFO, etc.)
must obey so the rest of the cache can interact with it in a uniform way.

The cache does NOT care how eviction works internally.
It only calls these methods.

Policies are NOT safe for concurrent use on their own; the owning shard
serializes calls with its write lock.
*/
type Policy interface {

	// OnGet is called whenever a key is read from the cache.
	//
	// Some eviction strategies care about reads:
	// - LRU needs to know what was accessed recently
	// - LFU counts accesses
	//
	// FIFO ignores this.
	OnGet(string)

	// OnPut is called whenever a key is added to the cache.
	//
	// This lets the eviction policy track insertion order and initialize
	// counters or metadata.
	OnPut(string)

	// Remove is called when a key is explicitly removed from the cache
	// (not evicted). This lets the policy clean up its bookkeeping.
	Remove(string)

	// Evict is called when the cache is FULL and needs space.
	//
	// The policy decides which key should be removed and returns it.
	// The cache then actually removes it from storage.
	// An empty string means the policy tracks nothing.
	Evict() string

	// Reset drops all bookkeeping. Called by Clear.
	Reset()
}

// PolicyType is a simple identifier for supported eviction strategies.
type PolicyType string

const (
	// LRU (Least Recently Used): Evicts the key that has NOT been accessed
	// for the longest time. Access genuinely reorders entries; a key that is
	// read stops being an eviction candidate until everything else has been
	// touched.
	LRU PolicyType = "LRU"

	// LFU (Least Frequently Used): Evicts the key that has been accessed the
	// fewest times. This works well when some keys are consistently hot and
	// some are rarely used.
	LFU PolicyType = "LFU"

	// FIFO (First In First Out): Evicts the oldest inserted key, regardless
	// of access.
	FIFO PolicyType = "FIFO"
)

// Default is the policy used when no explicit choice is made.
const Default = LRU

// New is a small factory function. Given a PolicyType, it creates the
// correct eviction policy.
func New(t PolicyType) (Policy, error) {
	switch t {
	case LRU:
		return newLRU(), nil
	case LFU:
		return newLFU(), nil
	case FIFO:
		return newFIFO(), nil
	default:
		return nil, fmt.Errorf("unknown eviction policy %q", t)
	}
}
