package shoal_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tidemark-io/shoal"
	"github.com/tidemark-io/shoal/engine"
	"github.com/tidemark-io/shoal/eviction"
	"github.com/tidemark-io/shoal/expiration"
	"github.com/tidemark-io/shoal/types"
	"github.com/tidemark-io/shoal/writepolicy"
)

//
// ================= TEST BACKING STORE =================
//

type TestStore struct {
	mu    sync.RWMutex
	data  map[string]any
	loads atomic.Int64
}

func NewTestStore() *TestStore {
	return &TestStore{data: make(map[string]any)}
}

func (s *TestStore) Load(ctx context.Context, key string) (any, error) {
	s.loads.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[key], nil
}

func (s *TestStore) Put(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *TestStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

func (s *TestStore) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

//
// ================= HELPERS =================
//

// newTestCache builds a 2-shard LRU cache with a write-through store.
func newTestCache(t *testing.T, capacity int) (*shoal.ShardedCache, *TestStore) {
	t.Helper()

	store := NewTestStore()
	eng := engine.New(
		nil,
		nil,
		store,
		writepolicy.NewWriteThroughPolicy(store, nil),
		nil,
	)

	c, err := shoal.New(2, capacity, eviction.LRU, eng)
	if err != nil {
		t.Fatalf("shoal.New: %v", err)
	}
	t.Cleanup(c.Close)

	return c, store
}

// newBareCache builds a cache with no loader and no write policy.
func newBareCache(t *testing.T, shards, capacity int, policy eviction.PolicyType, opts ...shoal.Option) *shoal.ShardedCache {
	t.Helper()

	c, err := shoal.New(shards, capacity, policy, engine.New(nil, nil, nil, nil, nil), opts...)
	if err != nil {
		t.Fatalf("shoal.New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

//
// ================= BASIC OPERATIONS =================
//

func TestAddAndRetrieve(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, 10)

	if err := c.Put(ctx, "key1", "value1"); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	v, _ := c.Get(ctx, "key1")
	if v != "value1" {
		t.Fatalf("expected value1, got %v", v)
	}
}

func TestLookupNeverSetKeyReportsAbsence(t *testing.T) {
	c := newBareCache(t, 2, 10, eviction.LRU)

	if v, ok := c.Lookup("never-set"); ok {
		t.Fatalf("expected absence, got %v", v)
	}
}

func TestLookupDoesNotTouchBackingStore(t *testing.T) {
	c, store := newTestCache(t, 10)
	store.Set("keyX", "store-value")

	if _, ok := c.Lookup("keyX"); ok {
		t.Fatal("Lookup consulted the backing store")
	}
	if store.loads.Load() != 0 {
		t.Fatalf("loads = %d, want 0", store.loads.Load())
	}
}

func TestGetFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	c, store := newTestCache(t, 10)

	store.Set("keyX", "store-value")

	v, _ := c.Get(ctx, "keyX")
	if v != "store-value" {
		t.Fatalf("expected store-value, got %v", v)
	}

	// Loaded value is now cached.
	if v, ok := c.Lookup("keyX"); !ok || v != "store-value" {
		t.Fatalf("loaded value not cached: %v, %v", v, ok)
	}

	// Missing in both cache and store.
	v, _ = c.Get(ctx, "missing")
	if v != nil {
		t.Fatalf("expected nil, got %v", v)
	}
}

func TestUpdateExistingKey(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, 10)

	c.Put(ctx, "key1", "value1")
	c.Put(ctx, "key1", "value2")

	v, _ := c.Get(ctx, "key1")
	if v != "value2" {
		t.Fatalf("expected value2, got %v", v)
	}
	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
}

func TestRemoveKey(t *testing.T) {
	ctx := context.Background()
	c, store := newTestCache(t, 10)

	c.Put(ctx, "key1", "value1")
	c.Remove("key1")
	store.Delete("key1") // simulate true delete

	v, _ := c.Get(ctx, "key1")
	if v != nil {
		t.Fatalf("expected nil after remove, got %v", v)
	}

	// Removing a non-existing key is safe.
	c.Remove("missing")
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	c := newBareCache(t, 2, 10, eviction.LRU)

	keys := []string{"a", "b", "c", "d"}
	for _, k := range keys {
		c.Put(ctx, k, k)
	}

	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("len after clear = %d, want 0", c.Len())
	}
	for _, k := range keys {
		if _, ok := c.Lookup(k); ok {
			t.Fatalf("key %q survived clear", k)
		}
	}

	// Cache is usable after Clear.
	c.Put(ctx, "e", "e")
	if v, ok := c.Lookup("e"); !ok || v != "e" {
		t.Fatalf("put after clear: %v, %v", v, ok)
	}
}

//
// ================= CAPACITY & EVICTION =================
//

func TestEvictionOnCapacity(t *testing.T) {
	ctx := context.Background()
	c, store := newTestCache(t, 2)

	// Preload store so evicted keys can be reloaded.
	store.Set("key1", "value1")
	store.Set("key2", "value2")
	store.Set("key3", "value3")

	c.Put(ctx, "key1", "value1")
	c.Put(ctx, "key2", "value2")
	c.Put(ctx, "key3", "value3")

	// Whatever was evicted reloads from the backing store.
	v, _ := c.Get(ctx, "key1")
	if v != "value1" {
		t.Fatalf("expected value1 from backing store, got %v", v)
	}
}

// Capacity+1 distinct untouched inserts into a single-shard cache make
// exactly one previously-inserted key unavailable: the oldest one, under
// every policy (LRU recency, FIFO insertion order, LFU age tie-break).
func TestCapacityPlusOneEvictsExactlyOne(t *testing.T) {
	for _, policy := range []eviction.PolicyType{eviction.LRU, eviction.FIFO, eviction.LFU} {
		t.Run(string(policy), func(t *testing.T) {
			ctx := context.Background()
			const capacity = 5
			c := newBareCache(t, 1, capacity, policy)

			for i := 0; i <= capacity; i++ {
				c.Put(ctx, fmt.Sprintf("k%d", i), i)
			}

			if c.Len() != capacity {
				t.Fatalf("len = %d, want %d", c.Len(), capacity)
			}

			var missing []string
			for i := 0; i <= capacity; i++ {
				key := fmt.Sprintf("k%d", i)
				if _, ok := c.Lookup(key); !ok {
					missing = append(missing, key)
				}
			}

			if len(missing) != 1 {
				t.Fatalf("missing = %v, want exactly one", missing)
			}
			if missing[0] != "k0" {
				t.Fatalf("expected k0 evicted, evicted %s", missing[0])
			}
		})
	}
}

func TestLRUAccessProtectsFromEviction(t *testing.T) {
	ctx := context.Background()
	c := newBareCache(t, 1, 2, eviction.LRU)

	c.Put(ctx, "a", 1)
	c.Put(ctx, "b", 2)

	// Touch "a" so "b" is the LRU victim.
	c.Lookup("a")
	c.Put(ctx, "c", 3)

	if _, ok := c.Lookup("a"); !ok {
		t.Fatal("recently used key was evicted")
	}
	if _, ok := c.Lookup("b"); ok {
		t.Fatal("least recently used key survived")
	}
}

func TestFIFOEvictsOldestInserted(t *testing.T) {
	ctx := context.Background()
	c := newBareCache(t, 1, 2, eviction.FIFO)

	c.Put(ctx, "a", 1)
	c.Put(ctx, "b", 2)
	c.Lookup("a") // FIFO ignores access
	c.Put(ctx, "c", 3)

	if _, ok := c.Lookup("a"); ok {
		t.Fatal("oldest inserted key survived")
	}
}

func TestEvictionCallbackOnCapacity(t *testing.T) {
	ctx := context.Background()

	type evicted struct {
		key    string
		reason types.EvictionReason
	}
	var mu sync.Mutex
	var events []evicted

	c := newBareCache(t, 1, 2, eviction.LRU, shoal.WithEvictionCallback(
		func(key string, value any, reason types.EvictionReason) {
			mu.Lock()
			events = append(events, evicted{key, reason})
			mu.Unlock()
		}))

	c.Put(ctx, "a", 1)
	c.Put(ctx, "b", 2)
	c.Put(ctx, "c", 3) // evicts a
	c.Remove("b")

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("events = %v", events)
	}
	if events[0].key != "a" || events[0].reason != types.ReasonCapacity {
		t.Fatalf("first event = %+v", events[0])
	}
	if events[1].key != "b" || events[1].reason != types.ReasonRemoved {
		t.Fatalf("second event = %+v", events[1])
	}
}

//
// ================= TTL =================
//

func TestTTLExpiration(t *testing.T) {
	ctx := context.Background()
	c := newBareCache(t, 2, 10, eviction.LRU)

	c.PutWithTTL(ctx, "ttlKey", "temp", 50*time.Millisecond)

	if v, ok := c.Lookup("ttlKey"); !ok || v != "temp" {
		t.Fatalf("fresh TTL key missing: %v, %v", v, ok)
	}

	time.Sleep(80 * time.Millisecond)

	if v, ok := c.Lookup("ttlKey"); ok {
		t.Fatalf("expected absence after TTL, got %v", v)
	}
}

func TestTTLReportCodes(t *testing.T) {
	ctx := context.Background()
	c := newBareCache(t, 2, 10, eviction.LRU)

	c.Put(ctx, "forever", 1)
	c.PutWithTTL(ctx, "mortal", 1, time.Hour)

	if d := c.TTL("forever"); d != shoal.TTLNone {
		t.Fatalf("TTL(forever) = %v, want TTLNone", d)
	}
	if d := c.TTL("missing"); d != shoal.TTLMissing {
		t.Fatalf("TTL(missing) = %v, want TTLMissing", d)
	}
	if d := c.TTL("mortal"); d <= 0 || d > time.Hour {
		t.Fatalf("TTL(mortal) = %v", d)
	}
}

func TestExpire(t *testing.T) {
	ctx := context.Background()
	c := newBareCache(t, 2, 10, eviction.LRU)

	c.Put(ctx, "k", 1)

	if !c.Expire("k", time.Hour) {
		t.Fatal("Expire on existing key returned false")
	}
	if d := c.TTL("k"); d <= 0 {
		t.Fatalf("TTL after Expire = %v", d)
	}

	if c.Expire("missing", time.Hour) {
		t.Fatal("Expire on missing key returned true")
	}
}

// gatedExpiry reports the entry expired on the armed call, but parks inside
// the check until released. This opens the window between the lock-free
// expiry decision and the removal.
type gatedExpiry struct {
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedExpiry) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	if g.armed.CompareAndSwap(true, false) {
		g.entered <- struct{}{}
		<-g.release
		return true
	}
	return !ent.ExpireAt.IsZero() && now.After(ent.ExpireAt)
}

func (g *gatedExpiry) OnAccess(ent *types.CacheEntry, now time.Time) {
	ent.LastAccessedAt = now
}

func (g *gatedExpiry) OnWrite(ent *types.CacheEntry, now time.Time) {
	ent.CreatedAt = now
	ent.LastAccessedAt = now
}

// A value written while an expired-entry removal is in flight must survive:
// the removal re-checks the stored entry under the shard lock and leaves a
// concurrent overwrite alone.
func TestExpiryRemovalSparesConcurrentOverwrite(t *testing.T) {
	ctx := context.Background()

	gate := &gatedExpiry{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	eng := engine.New(gate, nil, nil, nil, nil)
	c, err := shoal.New(1, 10, eviction.LRU, eng)
	if err != nil {
		t.Fatalf("shoal.New: %v", err)
	}
	t.Cleanup(c.Close)

	c.Put(ctx, "k", "stale")

	// This Lookup decides "k" is expired, then parks before removing it.
	gate.armed.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Lookup("k")
	}()
	<-gate.entered

	// A fresh write lands while the removal is parked.
	if err := c.Put(ctx, "k", "fresh"); err != nil {
		t.Fatalf("put: %v", err)
	}

	close(gate.release)
	<-done

	v, ok := c.Lookup("k")
	if !ok {
		t.Fatal("fresh write lost: Lookup reports absence after Put returned")
	}
	if v != "fresh" {
		t.Fatalf("value = %v, want fresh", v)
	}
}

func TestJanitorSweepsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	c := newBareCache(t, 2, 10, eviction.LRU, shoal.WithJanitor(20*time.Millisecond))

	c.PutWithTTL(ctx, "short", 1, 30*time.Millisecond)
	c.Put(ctx, "forever", 2)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Len() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The janitor removed the expired entry without anyone touching it.
	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
	if _, ok := c.Lookup("forever"); !ok {
		t.Fatal("unexpired key swept")
	}
}

func TestSlidingTTLKeepsHotEntriesAlive(t *testing.T) {
	ctx := context.Background()

	eng := engine.New(&expiration.ExpireAfterAccess{TTL: 100 * time.Millisecond}, nil, nil, nil, nil)
	c, err := shoal.New(2, 10, eviction.LRU, eng)
	if err != nil {
		t.Fatalf("shoal.New: %v", err)
	}
	t.Cleanup(c.Close)

	c.Put(ctx, "hot", 1)

	// Keep touching the key past its original deadline.
	for i := 0; i < 5; i++ {
		time.Sleep(50 * time.Millisecond)
		if _, ok := c.Lookup("hot"); !ok {
			t.Fatalf("hot key expired on touch %d", i)
		}
	}

	// Stop touching; now it expires.
	time.Sleep(150 * time.Millisecond)
	if _, ok := c.Lookup("hot"); ok {
		t.Fatal("idle key did not expire")
	}
}

//
// ================= CONCURRENCY =================
//

func TestConcurrentGet(t *testing.T) {
	ctx := context.Background()
	c, store := newTestCache(t, 10)

	store.Set("key", "value")

	wg := sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _ := c.Get(ctx, "key")
			if v != "value" {
				t.Errorf("expected value, got %v", v)
			}
		}()
	}
	wg.Wait()
}

func TestSingleflightCollapsesLoads(t *testing.T) {
	ctx := context.Background()

	store := NewTestStore()
	store.Set("key", "value")

	// A loader that parks every caller until released, so all goroutines
	// pile onto the same flight.
	gate := make(chan struct{})
	slow := &slowLoader{TestStore: store, gate: gate}

	eng := engine.New(nil, nil, slow, nil, nil)
	c, err := shoal.New(2, 10, eviction.LRU, eng)
	if err != nil {
		t.Fatalf("shoal.New: %v", err)
	}
	t.Cleanup(c.Close)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, _ := c.Get(ctx, "key"); v != "value" {
				t.Errorf("got %v", v)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond) // let all goroutines join the flight
	close(gate)
	wg.Wait()

	if n := store.loads.Load(); n != 1 {
		t.Fatalf("loads = %d, want 1", n)
	}
}

type slowLoader struct {
	*TestStore
	gate chan struct{}
}

func (s *slowLoader) Load(ctx context.Context, key string) (any, error) {
	<-s.gate
	return s.TestStore.Load(ctx, key)
}

func TestConcurrentMixedOperations(t *testing.T) {
	ctx := context.Background()
	c := newBareCache(t, 8, 1000, eviction.LRU)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%50)
				switch i % 4 {
				case 0:
					c.Put(ctx, key, i)
				case 1:
					c.Lookup(key)
				case 2:
					c.TTL(key)
				case 3:
					c.Remove(key)
				}
			}
		}(w)
	}
	wg.Wait()
}

//
// ================= WRITE PROPAGATION =================
//

func TestWriteThroughPropagatesTTLWrites(t *testing.T) {
	ctx := context.Background()
	c, store := newTestCache(t, 10)

	// A TTL'd write still reaches the backing store.
	c.PutWithTTL(ctx, "k", "v", time.Hour)

	store.mu.RLock()
	defer store.mu.RUnlock()
	if store.data["k"] != "v" {
		t.Fatalf("store missed TTL write: %v", store.data["k"])
	}
}

type failingStore struct{}

func (failingStore) Load(ctx context.Context, key string) (any, error) { return nil, nil }

func (failingStore) Put(ctx context.Context, key string, value any) error {
	return errors.New("store down")
}

// Write propagation is best-effort: a failing backing store never fails the
// in-memory write.
func TestPutSucceedsWhenBackingStoreFails(t *testing.T) {
	ctx := context.Background()

	eng := engine.New(nil, nil, failingStore{}, writepolicy.NewWriteThroughPolicy(failingStore{}, nil), nil)
	c, err := shoal.New(2, 10, eviction.LRU, eng)
	if err != nil {
		t.Fatalf("shoal.New: %v", err)
	}
	t.Cleanup(c.Close)

	if err := c.Put(ctx, "k", "v"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if v, ok := c.Lookup("k"); !ok || v != "v" {
		t.Fatalf("lookup after failed propagation = %v, %v", v, ok)
	}
}

func TestWriteBackFlushedOnClose(t *testing.T) {
	ctx := context.Background()

	store := NewTestStore()
	eng := engine.New(nil, nil, store, writepolicy.NewWriteBackPolicy(store, 64, nil, nil), nil)

	c, err := shoal.New(2, 10, eviction.LRU, eng)
	if err != nil {
		t.Fatalf("shoal.New: %v", err)
	}

	c.Put(ctx, "k", "v")
	c.Close() // flushes the queue

	store.mu.RLock()
	defer store.mu.RUnlock()
	if store.data["k"] != "v" {
		t.Fatalf("store missed write-back: %v", store.data["k"])
	}
}
