package main

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tidemark-io/shoal"
	"github.com/tidemark-io/shoal/engine"
	"github.com/tidemark-io/shoal/eviction"
	"github.com/tidemark-io/shoal/expiration"
	"github.com/tidemark-io/shoal/metrics"
)

var (
	benchOps      int
	benchKeys     int
	benchWorkers  int
	benchWritePct int
	benchEviction string

	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Run a mixed read/write load against an in-process cache",
		RunE:  runBench,
	}
)

func bindBenchFlags() {
	fs := benchCmd.Flags()
	fs.IntVar(&benchOps, "ops", 1_000_000, "total operations")
	fs.IntVar(&benchKeys, "keys", 100_000, "distinct keys")
	fs.IntVar(&benchWorkers, "workers", 8, "concurrent workers")
	fs.IntVar(&benchWritePct, "write-pct", 10, "percentage of operations that are writes")
	fs.StringVar(&benchEviction, "eviction", "LRU", "eviction policy (LRU, LFU, FIFO)")
}

// benchCounters is a cheap Metrics implementation for the benchmark run.
type benchCounters struct {
	mu        sync.Mutex
	hits      int
	misses    int
	evictions int
	expired   int
}

func (m *benchCounters) Hit()      { m.mu.Lock(); m.hits++; m.mu.Unlock() }
func (m *benchCounters) Miss()     { m.mu.Lock(); m.misses++; m.mu.Unlock() }
func (m *benchCounters) Eviction() { m.mu.Lock(); m.evictions++; m.mu.Unlock() }
func (m *benchCounters) Expire()   { m.mu.Lock(); m.expired++; m.mu.Unlock() }
func (m *benchCounters) Refresh()  {}
func (m *benchCounters) Drop()     {}

func runBench(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	counters := &benchCounters{}
	eng := engine.New(&expiration.ExpireAfterWrite{TTL: time.Minute}, nil, nil, nil, counters)

	cache, err := shoal.New(
		cfg.CacheShards(),
		cfg.CacheCapacity(),
		eviction.PolicyType(benchEviction),
		eng,
	)
	if err != nil {
		return err
	}
	defer cache.Close()

	// Preload half the keyspace so the run starts warm.
	for i := 0; i < benchKeys/2; i++ {
		if err := cache.Put(ctx, benchKey(i), i); err != nil {
			return err
		}
	}

	logger.Info("benchmark starting",
		"ops", benchOps, "keys", benchKeys, "workers", benchWorkers,
		"write_pct", benchWritePct, "eviction", benchEviction)

	tracker := metrics.NewLatencyTracker(0.01)
	perWorker := benchOps / benchWorkers

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < benchWorkers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))

			for i := 0; i < perWorker; i++ {
				key := benchKey(rng.Intn(benchKeys))
				if rng.Intn(100) < benchWritePct {
					opStart := time.Now()
					_ = cache.Put(ctx, key, i)
					tracker.Record("put", time.Since(opStart))
				} else {
					opStart := time.Now()
					cache.Lookup(key)
					tracker.Record("lookup", time.Since(opStart))
				}
			}
		}(int64(w))
	}
	wg.Wait()
	elapsed := time.Since(start)

	total := perWorker * benchWorkers
	fmt.Printf("\n%s operations in %s (%s ops/sec)\n",
		humanize.Comma(int64(total)),
		elapsed.Round(time.Millisecond),
		humanize.Comma(int64(float64(total)/elapsed.Seconds())))
	fmt.Printf("hits=%s misses=%s evictions=%s expired=%s\n",
		humanize.Comma(int64(counters.hits)),
		humanize.Comma(int64(counters.misses)),
		humanize.Comma(int64(counters.evictions)),
		humanize.Comma(int64(counters.expired)))

	fmt.Println("\nlatency quantiles:")
	for _, stats := range tracker.GetAllStats() {
		fmt.Println(stats)
	}

	return nil
}

func benchKey(i int) string {
	return fmt.Sprintf("key-%d", i)
}
