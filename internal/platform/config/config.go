package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration of the explorer server.
type Config struct {
	Server ServerConfig
	Log    LogConfig
	Store  StoreConfig
	Source SourceConfig
	Search SearchConfig
	Cache  CacheConfig
	Redis  RedisConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	SessionIdleTTL  time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig selects the scorecard database backing the data API.
type StoreConfig struct {
	Driver string // sqlite | postgres
	DSN    string
}

// SourceConfig selects where search criteria fetch their datasets from.
type SourceConfig struct {
	Mode      string // local | http
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	Burst     int
}

type SearchConfig struct {
	DataYear       string
	FetchTimeout   time.Duration
	MaxConcurrency int
	LoadDirectory  bool
}

type CacheConfig struct {
	Backend string // none | memory | redis
	TTL     time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

const envPrefix = "CSCX"

var (
	ErrUnknownStoreDriver = errors.New("unknown store driver")
	ErrUnknownSourceMode  = errors.New("unknown source mode")
	ErrUnknownCache       = errors.New("unknown cache backend")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.session_idle_ttl", 30*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "file:data/cscvis.db?mode=ro")

	v.SetDefault("source.mode", "local")
	v.SetDefault("source.base_url", "http://localhost:8080/cscvis/api/v2.0/data")
	v.SetDefault("source.timeout", 10*time.Second)
	v.SetDefault("source.rate_limit", 20.0)
	v.SetDefault("source.burst", 10)

	v.SetDefault("search.data_year", "2014")
	v.SetDefault("search.fetch_timeout", 15*time.Second)
	v.SetDefault("search.max_concurrency", 0)
	v.SetDefault("search.load_directory", true)

	v.SetDefault("cache.backend", "none")
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
}

// Load reads config.yaml from path (optional), then applies CSCX_* environment
// overrides on top of the defaults. A missing config file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			SessionIdleTTL:  v.GetDuration("server.session_idle_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(v.GetString("store.driver")),
			DSN:    v.GetString("store.dsn"),
		},
		Source: SourceConfig{
			Mode:      strings.ToLower(v.GetString("source.mode")),
			BaseURL:   strings.TrimRight(v.GetString("source.base_url"), "/"),
			Timeout:   v.GetDuration("source.timeout"),
			RateLimit: v.GetFloat64("source.rate_limit"),
			Burst:     v.GetInt("source.burst"),
		},
		Search: SearchConfig{
			DataYear:       v.GetString("search.data_year"),
			FetchTimeout:   v.GetDuration("search.fetch_timeout"),
			MaxConcurrency: v.GetInt("search.max_concurrency"),
			LoadDirectory:  v.GetBool("search.load_directory"),
		},
		Cache: CacheConfig{
			Backend: strings.ToLower(v.GetString("cache.backend")),
			TTL:     v.GetDuration("cache.ttl"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("redis.url"),
			PoolSize:     v.GetInt("redis.pool_size"),
			MinIdleConns: v.GetInt("redis.min_idle_conns"),
			DialTimeout:  v.GetDuration("redis.dial_timeout"),
			ReadTimeout:  v.GetDuration("redis.read_timeout"),
			WriteTimeout: v.GetDuration("redis.write_timeout"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated settings and cross-field requirements.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStoreDriver, c.Store.Driver)
	}
	switch c.Source.Mode {
	case "local":
	case "http":
		if c.Source.BaseURL == "" {
			return errors.New("source.base_url is required in http mode")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSourceMode, c.Source.Mode)
	}
	switch c.Cache.Backend {
	case "none", "memory":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCache, c.Cache.Backend)
	}
	if c.Search.DataYear == "" {
		return errors.New("search.data_year is required")
	}
	return nil
}
