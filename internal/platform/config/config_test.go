package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "local", cfg.Source.Mode)
	assert.Equal(t, "2014", cfg.Search.DataYear)
	assert.Equal(t, 15*time.Second, cfg.Search.FetchTimeout)
	assert.Equal(t, "none", cfg.Cache.Backend)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  addr: ":9090"
search:
  data_year: "2013"
cache:
  backend: memory
  ttl: 1m
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("CSCX_SERVER_ADDR", ":7070")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr, "env wins over file")
	assert.Equal(t, "2013", cfg.Search.DataYear)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("CSCX_STORE_DRIVER", "oracle")

	_, err := Load(t.TempDir())
	assert.ErrorIs(t, err, ErrUnknownStoreDriver)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Store:  StoreConfig{Driver: "postgres"},
		Source: SourceConfig{Mode: "http", BaseURL: "http://x"},
		Search: SearchConfig{DataYear: "2014"},
		Cache:  CacheConfig{Backend: "none"},
	}
	require.NoError(t, valid.Validate())

	t.Run("http mode without base url", func(t *testing.T) {
		c := valid
		c.Source.BaseURL = ""
		assert.Error(t, c.Validate())
	})
	t.Run("redis cache without url", func(t *testing.T) {
		c := valid
		c.Cache.Backend = "redis"
		assert.Error(t, c.Validate())
	})
	t.Run("unknown cache", func(t *testing.T) {
		c := valid
		c.Cache.Backend = "memcached"
		assert.ErrorIs(t, c.Validate(), ErrUnknownCache)
	})
	t.Run("unknown source", func(t *testing.T) {
		c := valid
		c.Source.Mode = "ftp"
		assert.ErrorIs(t, c.Validate(), ErrUnknownSourceMode)
	})
}
