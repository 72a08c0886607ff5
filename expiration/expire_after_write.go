package expiration

import (
	"time"

	"github.com/tidemark-io/shoal/types"
)

/*
ExpireAfterWrite gives every entry a fixed lifetime from the moment it is
written: deadline = write time + TTL. Reads do not extend the lifetime.

This is the strategy behind plain `set(key, value, ttl)` semantics. An entry
written with an explicit per-entry TTL keeps that TTL; the strategy only
fills in the deadline when the caller did not set one.
*/
type ExpireAfterWrite struct {

	// TTL is the default lifetime applied to entries written without an
	// explicit TTL. Zero means such entries never expire.
	TTL time.Duration
}

// IsExpired checks whether the entry is expired at this moment.
func (e *ExpireAfterWrite) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return !ent.ExpireAt.IsZero() && now.After(ent.ExpireAt)
}

// OnAccess records the access but does NOT move the deadline.
func (e *ExpireAfterWrite) OnAccess(ent *types.CacheEntry, now time.Time) {
	ent.LastAccessedAt = now
}

// OnWrite stamps the entry and sets the deadline if the caller didn't.
// An explicit TTL (PutWithTTL or Expire) always wins.
func (e *ExpireAfterWrite) OnWrite(ent *types.CacheEntry, now time.Time) {
	ent.CreatedAt = now
	ent.LastAccessedAt = now

	if ent.ExpireAt.IsZero() && e.TTL > 0 {
		ent.ExpireAt = now.Add(e.TTL)
	}
}
