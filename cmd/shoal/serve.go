package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/tidemark-io/shoal"
	"github.com/tidemark-io/shoal/engine"
	"github.com/tidemark-io/shoal/eviction"
	"github.com/tidemark-io/shoal/expiration"
	"github.com/tidemark-io/shoal/internal/config"
	"github.com/tidemark-io/shoal/internal/server"
	"github.com/tidemark-io/shoal/metrics"
	"github.com/tidemark-io/shoal/refresh"
	"github.com/tidemark-io/shoal/store/filestore"
	"github.com/tidemark-io/shoal/store/s3store"
	"github.com/tidemark-io/shoal/types"
	"github.com/tidemark-io/shoal/writepolicy"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cache behind an HTTP server",
	RunE:  runServe,
}

// bindServeFlags registers the serve flags and wires them into viper.
// Called from main once the config exists.
func bindServeFlags() error {
	for _, opts := range [][]config.Option{config.CacheOptions, config.StoreOptions, config.ServerOptions} {
		if err := cfg.BindFlags(serveCmd.Flags(), opts); err != nil {
			return err
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache, reg, err := buildCache(ctx)
	if err != nil {
		return err
	}
	defer cache.Close()

	logger.Info("serving cache",
		"address", cfg.ServerAddress(),
		"shards", cfg.CacheShards(),
		"capacity", cfg.CacheCapacity(),
		"eviction", cfg.CacheEviction(),
		"store", cfg.StoreKind(),
	)

	return server.Run(ctx, cfg.ServerAddress(), cache,
		server.WithRegistry(reg),
		server.WithAllowedOrigins(cfg.ServerAllowedOrigins()),
		server.WithLogger(logger),
	)
}

// buildCache assembles the whole stack from configuration: backing store,
// write policy, expiration strategy, refresh-ahead, metrics, janitor.
func buildCache(ctx context.Context) (shoal.Cache, *prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.NewPrometheus(reg, "shoal")

	loader, err := buildLoader(ctx)
	if err != nil {
		return nil, nil, err
	}

	var policy writepolicy.WritePolicy
	if loader != nil {
		switch cfg.StoreWritePolicy() {
		case "through":
			policy = writepolicy.NewWriteThroughPolicy(loader, logger)
		case "back":
			policy = writepolicy.NewWriteBackPolicy(loader, cfg.StoreWriteBackBuffer(), m, logger)
		default:
			return nil, nil, fmt.Errorf("unknown write policy %q", cfg.StoreWritePolicy())
		}
	}

	var strategy expiration.Strategy
	if ttl := cfg.CacheTTL(); ttl > 0 {
		if cfg.CacheSlidingTTL() {
			strategy = &expiration.ExpireAfterAccess{TTL: ttl}
		} else {
			strategy = &expiration.ExpireAfterWrite{TTL: ttl}
		}
	}

	var hook *refresh.Ahead
	if window := cfg.CacheRefreshWindow(); window > 0 && loader != nil {
		hook = refresh.NewAhead(loader, m, window, cfg.CacheTTL())
	}

	eng := engine.New(strategy, hookOrNil(hook), loader, policy, m)

	var opts []shoal.Option
	opts = append(opts, shoal.WithLogger(logger))
	if interval := cfg.CacheJanitorInterval(); interval > 0 {
		opts = append(opts, shoal.WithJanitor(interval))
	}

	cache, err := shoal.New(
		cfg.CacheShards(),
		cfg.CacheCapacity(),
		eviction.PolicyType(cfg.CacheEviction()),
		eng,
		opts...,
	)
	if err != nil {
		return nil, nil, err
	}

	if hook != nil {
		hook.Bind(cache)
	}

	return cache, reg, nil
}

func buildLoader(ctx context.Context) (types.Loader, error) {
	switch cfg.StoreKind() {
	case "none", "":
		return nil, nil
	case "file":
		return filestore.New(cfg.StoreFileDir(), logger)
	case "s3":
		s3cfg, err := s3store.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		return s3store.New(ctx, s3cfg, logger)
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.StoreKind())
	}
}

// hookOrNil avoids a typed-nil interface when no refresh hook is
// configured.
func hookOrNil(h *refresh.Ahead) refresh.Hook {
	if h == nil {
		return nil
	}
	return h
}
