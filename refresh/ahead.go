package refresh

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tidemark-io/shoal/types"
)

// Target is the slice of the cache the refresher writes back into.
// The root cache satisfies it.
type Target interface {
	PutWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error
}

/*
Ahead implements refresh-ahead: when a read lands inside the refresh window
before the entry's deadline, the entry is reloaded from the backing store in
the background and rewritten with a fresh TTL. Hot entries therefore never
expire under load; readers keep getting the (slightly stale) cached value
while the reload runs.

Reads outside the window, and entries without a deadline, are untouched.
*/
type Ahead struct {
	loader  types.Loader
	target  Target
	metrics types.Metrics

	// Window is how long before the deadline a read starts a refresh.
	Window time.Duration

	// TTL applied to refreshed entries.
	TTL time.Duration

	// Timeout bounds each background reload.
	Timeout time.Duration

	sf singleflight.Group
}

// NewAhead creates a refresh-ahead hook. The target is set later with Bind
// because the cache and its hooks are constructed together.
func NewAhead(loader types.Loader, metrics types.Metrics, window, ttl time.Duration) *Ahead {
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	return &Ahead{
		loader:  loader,
		metrics: metrics,
		Window:  window,
		TTL:     ttl,
		Timeout: 30 * time.Second,
	}
}

// Bind points the hook at the cache it refreshes into. Must be called
// before the hook sees traffic.
func (a *Ahead) Bind(t Target) { a.target = t }

// OnRead checks the deadline and, inside the window, kicks off a
// singleflighted background reload. It never blocks.
func (a *Ahead) OnRead(key string, ent *types.CacheEntry) {
	if a.target == nil || ent.ExpireAt.IsZero() {
		return
	}
	if time.Until(ent.ExpireAt) > a.Window {
		return
	}

	go func() {
		// DoChan would add nothing here; the goroutine is already off the
		// read path, and Do deduplicates concurrent refreshes per key.
		_, _, _ = a.sf.Do(key, func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), a.Timeout)
			defer cancel()

			val, err := a.loader.Load(ctx, key)
			if err != nil || val == nil {
				// The entry keeps its old deadline and expires normally.
				return nil, err
			}

			a.metrics.Refresh()
			return nil, a.target.PutWithTTL(ctx, key, val, a.TTL)
		})
	}()
}
