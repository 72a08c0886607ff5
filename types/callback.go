package types

// EvictionReason says why an entry left the cache.
type EvictionReason int

const (
	// ReasonCapacity: the cache was full and the eviction policy chose this key.
	ReasonCapacity EvictionReason = iota

	// ReasonExpired: the entry passed its TTL.
	ReasonExpired

	// ReasonRemoved: the caller removed the key explicitly (Remove or Clear).
	ReasonRemoved
)

func (r EvictionReason) String() string {
	switch r {
	case ReasonCapacity:
		return "capacity"
	case ReasonExpired:
		return "expired"
	case ReasonRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

/*
EvictionCallback runs after an entry has been removed from the cache for any
reason. It is the place to release resources held by cached values (close a
connection, return a buffer to a pool, ...).

The callback runs outside the shard lock but still on the calling goroutine,
so it must be fast. Spawn a goroutine for slow cleanup.
*/
type EvictionCallback func(key string, value any, reason EvictionReason)
