package writepolicy

import (
	"context"
	"log/slog"

	"github.com/tidemark-io/shoal/types"
)

/*
This file implements the "write-through" policy. Whenever the cache writes
data, it immediately writes the same data to the backing store:

	Cache write → store write (synchronous)
*/

// WriteThroughPolicy forwards every cache write to the backing store.
type WriteThroughPolicy struct {

	// store is the backing store (DB, API, disk) where data must be
	// persisted immediately.
	store types.Loader

	logger *slog.Logger
}

// NewWriteThroughPolicy creates a new write-through policy. A nil logger
// discards store errors silently.
func NewWriteThroughPolicy(store types.Loader, logger *slog.Logger) *WriteThroughPolicy {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &WriteThroughPolicy{store: store, logger: logger}
}

/*
OnWrite immediately writes the data to the backing store.
- The call is synchronous
- If the backing store is slow, cache writes become slow
- Store errors don't fail the in-memory write; they are logged
*/
func (w *WriteThroughPolicy) OnWrite(ctx context.Context, key string, value any) {
	if err := w.store.Put(ctx, key, value); err != nil {
		w.logger.Warn("write-through to backing store failed", "key", key, "error", err)
	}
}

// Close is required by the WritePolicy interface. Write-through does not use
// background workers, so there is nothing to clean up.
func (w *WriteThroughPolicy) Close() {}
