package expiration

import (
	"time"

	"github.com/tidemark-io/shoal/types"
)

/*
ExpireAfterAccess implements a very common cache behavior called "expire
after access" or "sliding TTL". Every time someone reads the data, the
expiration timer is pushed forward. As long as the data keeps getting used,
it stays alive. If nobody touches it for a while, it expires.
*/
type ExpireAfterAccess struct {

	// TTL defines how long the entry should remain valid AFTER it is accessed.
	TTL time.Duration
}

// IsExpired checks whether the entry is expired at this moment.
func (e *ExpireAfterAccess) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return !ent.ExpireAt.IsZero() && now.After(ent.ExpireAt)
}

// OnAccess updates LastAccessedAt and pushes ExpireAt forward by TTL.
// This is the key part of "expire after access".
func (e *ExpireAfterAccess) OnAccess(ent *types.CacheEntry, now time.Time) {
	ent.LastAccessedAt = now
	ent.ExpireAt = now.Add(e.TTL)
}

/*
OnWrite is called when the entry is first written or replaced in the cache.

We only set ExpireAt if it is currently zero, because the caller might have
explicitly set a TTL (using PutWithTTL or Expire). We do NOT want to
overwrite an explicit TTL.
*/
func (e *ExpireAfterAccess) OnWrite(ent *types.CacheEntry, now time.Time) {
	ent.CreatedAt = now
	ent.LastAccessedAt = now

	if ent.ExpireAt.IsZero() {
		ent.ExpireAt = now.Add(e.TTL)
	}
}
