package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so no stray config.yaml is picked up
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, TransportStdio, cfg.Server.Transport)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 30*time.Second, cfg.Search.BackendTimeout)
	assert.Equal(t, "catalog.db", cfg.Database.Path)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 1000, cfg.Cache.Capacity)
	assert.Equal(t, 300*time.Second, cfg.Cache.EffectiveTTL())
	assert.Equal(t, 2, cfg.Cache.MinQueryLength)
	assert.Equal(t, "course_search", cfg.Redis.Prefix)
	assert.Equal(t, 1, cfg.Search.MinQueryLength)
	assert.Equal(t, 50, cfg.Search.DefaultLimit)
	assert.Equal(t, 100, cfg.Search.MaxLimit)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "catalog.yaml")
	content := `
server:
  transport: HTTP
  port: 9090
cache:
  backend: redis
  ttl: 45s
redis:
  address: redis:6379
search:
  max_limit: 25
  default_limit: 10
log:
  level: debug
  pretty: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, TransportHTTP, cfg.Server.Transport)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 45*time.Second, cfg.Cache.EffectiveTTL())
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
	assert.Equal(t, 25, cfg.Search.MaxLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	chdirTemp(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CATALOG_CACHE_BACKEND", "redis")
	t.Setenv("CATALOG_SEARCH_MAX_LIMIT", "60")
	t.Setenv("COURSE_CACHE_SIZE", "250")
	t.Setenv("COURSE_CACHE_TTL", "120")
	t.Setenv("REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("API_PORT", "8123")
	t.Setenv("CATALOG_DB_PATH", "/data/catalog.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 60, cfg.Search.MaxLimit)
	assert.Equal(t, 250, cfg.Cache.Capacity)
	assert.Equal(t, 120*time.Second, cfg.Cache.EffectiveTTL())
	assert.Equal(t, "redis://localhost:6379/2", cfg.Redis.URL)
	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, "/data/catalog.db", cfg.Database.Path)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	chdirTemp(t)
	cfg, err := Load("")
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{name: "defaults", mutate: func(*Config) {}, valid: true},
		{name: "unknown transport", mutate: func(c *Config) { c.Server.Transport = "grpc" }},
		{name: "bad http port", mutate: func(c *Config) { c.Server.Transport = TransportHTTP; c.Server.Port = 0 }},
		{name: "no database", mutate: func(c *Config) { c.Database.Path = "" }},
		{name: "unknown backend", mutate: func(c *Config) { c.Cache.Backend = "memcached" }},
		{name: "zero capacity", mutate: func(c *Config) { c.Cache.Capacity = 0 }},
		{name: "zero ttl", mutate: func(c *Config) { c.Cache.TTL = 0 }},
		{name: "redis without address", mutate: func(c *Config) {
			c.Cache.Backend = BackendRedis
			c.Redis.Address = ""
			c.Redis.URL = ""
		}},
		{name: "cache disabled skips cache checks", mutate: func(c *Config) {
			c.Cache.Enabled = false
			c.Cache.Capacity = 0
		}, valid: true},
		{name: "zero min query", mutate: func(c *Config) { c.Search.MinQueryLength = 0 }},
		{name: "cache threshold below search threshold", mutate: func(c *Config) {
			c.Search.MinQueryLength = 3
			c.Cache.MinQueryLength = 2
		}},
		{name: "default above max", mutate: func(c *Config) { c.Search.DefaultLimit = 200 }},
		{name: "negative candidates", mutate: func(c *Config) { c.Search.RankCandidateLimit = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8000}
	assert.Equal(t, "127.0.0.1:8000", s.Addr())
}
