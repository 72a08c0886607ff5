package types

// This file defines how the cache reports what it is doing.

/*
Metrics is an interface that defines what the cache wants to measure.
Each method represents an event in the cache lifecycle. The cache will call
these methods whenever something happens.
*/
type Metrics interface {

	// Hit is called when the cache successfully returns a value.
	Hit()

	// Miss is called when the cache does NOT find a key and has to load it
	// from the backing store.
	Miss()

	// Eviction is called when a key is removed because the cache is full
	// and needs space.
	Eviction()

	// Expire is called when a key is removed because it has passed its TTL
	// (time-based expiration).
	Expire()

	// Refresh is called when a refresh hook is triggered.
	Refresh()

	// Drop is called when a write-back policy discards a write because its
	// queue is full.
	Drop()
}

/*
NoopMetrics is a "do nothing" implementation of Metrics.

We don't want to force every user of the cache to implement metrics, and we
don't want `if metrics != nil` conditions on every event, so the default
implementation simply ignores all metric events.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()      {}
func (NoopMetrics) Miss()     {}
func (NoopMetrics) Eviction() {}
func (NoopMetrics) Expire()   {}
func (NoopMetrics) Refresh()  {}
func (NoopMetrics) Drop()     {}
