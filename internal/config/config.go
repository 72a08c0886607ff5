// Package config provides unified configuration loading from files,
// environment variables, and CLI flags using viper and pflag.
//
// Resolution order (highest wins):
//  1. CLI flags
//  2. Environment variables (prefix SHOAL_)
//  3. Config file (config.yaml in . or /etc/shoal/)
//  4. Compiled defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Option describes a single configuration entry: its viper key, the
// corresponding CLI flag name, the compiled default, and a human-readable
// description shown in --help output.
type Option struct {
	Key         string
	Flag        string
	Default     any
	Description string
}

// Viper keys for the cache itself.
const (
	keyCacheShards          = "cache.shards"
	keyCacheCapacity        = "cache.capacity"
	keyCacheEviction        = "cache.eviction"
	keyCacheTTL             = "cache.ttl"
	keyCacheSlidingTTL      = "cache.sliding_ttl"
	keyCacheJanitorInterval = "cache.janitor_interval"
	keyCacheRefreshWindow   = "cache.refresh_window"
)

// Viper keys for the backing store and write propagation.
const (
	keyStoreKind          = "store.kind"
	keyStoreFileDir       = "store.file.dir"
	keyStoreWritePolicy   = "store.write_policy"
	keyStoreWriteBackSize = "store.write_back_buffer"
)

// Viper keys for the HTTP server.
const (
	keyServerAddress        = "server.address"
	keyServerAllowedOrigins = "server.allowed_origins"
	keyServerDebugEnabled   = "server.debug.enabled"
)

// CacheOptions defines the configuration entries for the cache core.
var CacheOptions = []Option{
	{Key: keyCacheShards, Flag: toFlag(keyCacheShards), Default: 8, Description: "Number of cache shards"},
	{Key: keyCacheCapacity, Flag: toFlag(keyCacheCapacity), Default: 100000, Description: "Maximum number of cached entries"},
	{Key: keyCacheEviction, Flag: toFlag(keyCacheEviction), Default: "LRU", Description: "Eviction policy (LRU, LFU, FIFO)"},
	{Key: keyCacheTTL, Flag: toFlag(keyCacheTTL), Default: time.Duration(0), Description: "Default entry TTL (0 disables)"},
	{Key: keyCacheSlidingTTL, Flag: toFlag(keyCacheSlidingTTL), Default: false, Description: "Slide the TTL forward on every access"},
	{Key: keyCacheJanitorInterval, Flag: toFlag(keyCacheJanitorInterval), Default: time.Duration(0), Description: "Expired-entry sweep interval (0 disables the janitor)"},
	{Key: keyCacheRefreshWindow, Flag: toFlag(keyCacheRefreshWindow), Default: time.Duration(0), Description: "Refresh-ahead window before expiry (0 disables)"},
}

// StoreOptions defines the configuration entries for the backing store.
var StoreOptions = []Option{
	{Key: keyStoreKind, Flag: toFlag(keyStoreKind), Default: "none", Description: "Backing store (none, file, s3)"},
	{Key: keyStoreFileDir, Flag: toFlag(keyStoreFileDir), Default: "./shoal-data", Description: "Directory for the file backing store"},
	{Key: keyStoreWritePolicy, Flag: toFlag(keyStoreWritePolicy), Default: "through", Description: "Write propagation (through, back)"},
	{Key: keyStoreWriteBackSize, Flag: toFlag(keyStoreWriteBackSize), Default: 1024, Description: "Write-back queue size"},
}

// ServerOptions defines the configuration entries for the HTTP server.
var ServerOptions = []Option{
	{Key: keyServerAddress, Flag: toFlag(keyServerAddress), Default: ":8380", Description: "Server listen address"},
	{Key: keyServerAllowedOrigins, Flag: toFlag(keyServerAllowedOrigins), Default: []string{}, Description: "Allowed CORS origins"},
	{Key: keyServerDebugEnabled, Flag: toFlag(keyServerDebugEnabled), Default: false, Description: "Enable debug logging"},
}

type Config struct {
	v *viper.Viper
}

func New() (*Config, error) {
	v := viper.New()

	// default values
	for _, opts := range [][]Option{CacheOptions, StoreOptions, ServerOptions} {
		for _, o := range opts {
			v.SetDefault(o.Key, o.Default)
		}
	}

	// load config from file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/shoal/")

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !(errors.As(err, &notFoundErr) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// load config from environment variables
	v.SetEnvPrefix("SHOAL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{v: v}, nil
}

func (c *Config) BindFlags(fs *pflag.FlagSet, options []Option) error {
	for _, o := range options {
		switch v := o.Default.(type) {
		case string:
			fs.String(o.Flag, v, o.Description)
		case int:
			fs.Int(o.Flag, v, o.Description)
		case bool:
			fs.Bool(o.Flag, v, o.Description)
		case []string:
			fs.StringSlice(o.Flag, v, o.Description)
		case time.Duration:
			fs.Duration(o.Flag, v, o.Description)
		default:
			return fmt.Errorf("unsupported flag type for key: %s", o.Key)
		}

		if err := c.v.BindPFlag(o.Key, fs.Lookup(o.Flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", o.Flag, err)
		}
	}

	return nil
}

func (c *Config) CacheShards() int {
	return c.v.GetInt(keyCacheShards) // SHOAL_CACHE_SHARDS
}

func (c *Config) CacheCapacity() int {
	return c.v.GetInt(keyCacheCapacity) // SHOAL_CACHE_CAPACITY
}

func (c *Config) CacheEviction() string {
	return strings.ToUpper(c.v.GetString(keyCacheEviction)) // SHOAL_CACHE_EVICTION
}

func (c *Config) CacheTTL() time.Duration {
	return c.v.GetDuration(keyCacheTTL) // SHOAL_CACHE_TTL
}

func (c *Config) CacheSlidingTTL() bool {
	return c.v.GetBool(keyCacheSlidingTTL) // SHOAL_CACHE_SLIDING_TTL
}

func (c *Config) CacheJanitorInterval() time.Duration {
	return c.v.GetDuration(keyCacheJanitorInterval) // SHOAL_CACHE_JANITOR_INTERVAL
}

func (c *Config) CacheRefreshWindow() time.Duration {
	return c.v.GetDuration(keyCacheRefreshWindow) // SHOAL_CACHE_REFRESH_WINDOW
}

func (c *Config) StoreKind() string {
	return strings.ToLower(c.v.GetString(keyStoreKind)) // SHOAL_STORE_KIND
}

func (c *Config) StoreFileDir() string {
	return c.v.GetString(keyStoreFileDir) // SHOAL_STORE_FILE_DIR
}

func (c *Config) StoreWritePolicy() string {
	return strings.ToLower(c.v.GetString(keyStoreWritePolicy)) // SHOAL_STORE_WRITE_POLICY
}

func (c *Config) StoreWriteBackBuffer() int {
	return c.v.GetInt(keyStoreWriteBackSize) // SHOAL_STORE_WRITE_BACK_BUFFER
}

func (c *Config) ServerAddress() string {
	return c.v.GetString(keyServerAddress) // SHOAL_SERVER_ADDRESS
}

func (c *Config) ServerAllowedOrigins() []string {
	return c.v.GetStringSlice(keyServerAllowedOrigins) // SHOAL_SERVER_ALLOWED_ORIGINS
}

func (c *Config) ServerDebugEnabled() bool {
	return c.v.GetBool(keyServerDebugEnabled) // SHOAL_SERVER_DEBUG_ENABLED
}

func toFlag(key string) string {
	flag := strings.ToLower(key)
	flag = strings.ReplaceAll(flag, ".", "-")
	flag = strings.ReplaceAll(flag, "_", "-")
	return flag
}
