package writepolicy

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tidemark-io/shoal/types"
)

// This file implements the "write-back" policy.

// writeReq represents one pending write operation that needs to be sent to
// the backing store.
type writeReq struct {
	key   string
	value any
}

// WriteBackPolicy manages asynchronous writes to the backing store.
type WriteBackPolicy struct {

	// store is the backing store (DB, API, disk).
	store types.Loader

	// ch is a buffered channel holding pending write requests. Buffering
	// allows bursts of writes without blocking.
	ch chan writeReq

	// wg waits for the worker during shutdown.
	wg sync.WaitGroup

	metrics types.Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewWriteBackPolicy creates a write-back policy with one background worker.
// metrics counts dropped writes; nil means no counting. A nil logger
// discards store errors.
func NewWriteBackPolicy(store types.Loader, buffer int, metrics types.Metrics, logger *slog.Logger) *WriteBackPolicy {
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	w := &WriteBackPolicy{
		store:   store,
		ch:      make(chan writeReq, buffer),
		metrics: metrics,
		logger:  logger,
	}

	w.wg.Add(1)
	go w.worker()

	return w
}

// OnWrite queues the write instead of hitting the backing store directly.
// If the queue is full the write is DROPPED and counted: blocking here would
// slow down the cache and defeat the purpose of write-back. The request's
// context is not carried into the queue; queued writes outlive the caller.
func (w *WriteBackPolicy) OnWrite(ctx context.Context, key string, value any) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.metrics.Drop()
		return
	}
	select {
	case w.ch <- writeReq{key, value}:
		w.mu.Unlock()
	default:
		w.mu.Unlock()
		w.metrics.Drop()
		w.logger.Warn("write-back queue full, dropping write", "key", key)
	}
}

// worker drains the queue and writes data to the backing store. This is
// where eventual consistency happens.
func (w *WriteBackPolicy) worker() {
	defer w.wg.Done()

	for req := range w.ch {
		if err := w.store.Put(context.Background(), req.key, req.value); err != nil {
			w.logger.Warn("write-back to backing store failed", "key", req.key, "error", err)
		}
	}
}

/*
Close shuts down the write-back policy gracefully:

1. Stop accepting new writes
2. Close the channel
3. Wait for the worker to finish the queued writes

Without this, pending writes could be lost when the application shuts down.
Close is idempotent.
*/
func (w *WriteBackPolicy) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()

	w.wg.Wait()
}
