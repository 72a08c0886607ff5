// This file defines the idea of a "refresh hook". The hook lets the cache do
// something extra WHEN data is read. The goal of refresh is to keep data
// fresh without slowing down reads.

package refresh

import "github.com/tidemark-io/shoal/types"

/*
Hook is the interface for refresh behavior. If a refresh hook is configured,
it is called every time a cache entry is successfully read.

This gives us a chance to:
- Check if the entry is about to expire
- Trigger a background refresh
- Log access patterns

The cache itself does NOT care what the hook does. It just calls OnRead and
moves on.
*/
type Hook interface {

	// OnRead is called after a successful cache read. This method MUST be
	// fast and non-blocking because it runs on the hot read path.
	OnRead(key string, ent *types.CacheEntry)
}
