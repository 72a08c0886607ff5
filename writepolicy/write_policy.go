package writepolicy

import "context"

/*
This file defines what a "write policy" is.

Different systems have different needs:
- Some want strong consistency (write-through)
- Some want high throughput (write-back)

Instead of hard-coding one behavior, we define an interface so different
strategies can be plugged in.
*/

/*
WritePolicy is the contract that all write policies must follow. The cache
engine does not care which policy is used; it simply calls these methods.
*/
type WritePolicy interface {

	// OnWrite is called whenever the cache writes a key.
	OnWrite(ctx context.Context, key string, value any)

	// Close is called when the cache is shutting down.
	Close()
}
