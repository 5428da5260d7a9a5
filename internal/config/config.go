package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dshills/catalogsearch-mcp/internal/log"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	BackendMemory = "memory"
	BackendRedis  = "redis"

	// EnvPrefix namespaces environment overrides, e.g. CATALOG_CACHE_CAPACITY
	EnvPrefix = "CATALOG"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Search   SearchConfig   `mapstructure:"search"`
	Log      log.Config     `mapstructure:"log"`
}

type ServerConfig struct {
	Transport       string        `mapstructure:"transport"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns host:port for the HTTP listener
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Backend  string        `mapstructure:"backend"`
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
	// TTLSeconds overrides TTL when positive; it carries COURSE_CACHE_TTL,
	// which is a bare number of seconds
	TTLSeconds int `mapstructure:"ttl_seconds"`
	// MinQueryLength is the shortest normalized query that is cached
	MinQueryLength int `mapstructure:"min_query_length"`
}

// EffectiveTTL resolves TTL and TTLSeconds
func (c CacheConfig) EffectiveTTL() time.Duration {
	if c.TTLSeconds > 0 {
		return time.Duration(c.TTLSeconds) * time.Second
	}
	return c.TTL
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SearchConfig struct {
	MinQueryLength     int           `mapstructure:"min_query_length"`
	DefaultLimit       int           `mapstructure:"default_limit"`
	MaxLimit           int           `mapstructure:"max_limit"`
	RankCandidateLimit int           `mapstructure:"rank_candidate_limit"`
	BackendTimeout     time.Duration `mapstructure:"backend_timeout"`
}

// newViper reads the config file, if any, with environment support.
// An empty path searches for config.yaml in . and ./config.
func newViper(path string) (*viper.Viper, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil // No config file, rely on defaults and env vars
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", TransportStdio)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.path", "catalog.db")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", BackendMemory)
	v.SetDefault("cache.capacity", 1000)
	v.SetDefault("cache.ttl", "300s")
	v.SetDefault("cache.ttl_seconds", 0)
	v.SetDefault("cache.min_query_length", 2)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "course_search")
	v.SetDefault("search.min_query_length", 1)
	v.SetDefault("search.default_limit", 50)
	v.SetDefault("search.max_limit", 100)
	v.SetDefault("search.rank_candidate_limit", 0)
	v.SetDefault("search.backend_timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// bindLegacyEnv accepts the unprefixed variable names used by earlier
// deployments alongside the CATALOG_ names
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("cache.capacity", "CATALOG_CACHE_CAPACITY", "COURSE_CACHE_SIZE")
	_ = v.BindEnv("cache.ttl_seconds", "CATALOG_CACHE_TTL_SECONDS", "COURSE_CACHE_TTL")
	_ = v.BindEnv("redis.url", "CATALOG_REDIS_URL", "REDIS_URL")
	_ = v.BindEnv("server.host", "CATALOG_SERVER_HOST", "API_HOST")
	_ = v.BindEnv("server.port", "CATALOG_SERVER_PORT", "API_PORT")
	_ = v.BindEnv("database.path", "CATALOG_DATABASE_PATH", "CATALOG_DB_PATH")
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}

	setDefaults(v)
	bindLegacyEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Server.Transport = strings.ToLower(strings.TrimSpace(cfg.Server.Transport))
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))

	return &cfg, nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	var problems []string

	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		problems = append(problems, fmt.Sprintf("server.transport must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Server.Transport))
	}
	if c.Server.Transport == TransportHTTP && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		problems = append(problems, fmt.Sprintf("server.port out of range: %d", c.Server.Port))
	}
	if c.Database.Path == "" {
		problems = append(problems, "database.path is required")
	}

	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case BackendMemory, BackendRedis:
		default:
			problems = append(problems, fmt.Sprintf("cache.backend must be %q or %q, got %q", BackendMemory, BackendRedis, c.Cache.Backend))
		}
		if c.Cache.Backend == BackendMemory && c.Cache.Capacity <= 0 {
			problems = append(problems, fmt.Sprintf("cache.capacity must be positive, got %d", c.Cache.Capacity))
		}
		if c.Cache.EffectiveTTL() <= 0 {
			problems = append(problems, fmt.Sprintf("cache.ttl must be positive, got %s", c.Cache.EffectiveTTL()))
		}
		if c.Cache.Backend == BackendRedis && c.Redis.URL == "" && c.Redis.Address == "" {
			problems = append(problems, "redis.url or redis.address is required for the redis backend")
		}
	}

	if c.Search.MinQueryLength < 1 {
		problems = append(problems, fmt.Sprintf("search.min_query_length must be at least 1, got %d", c.Search.MinQueryLength))
	}
	if c.Cache.MinQueryLength < c.Search.MinQueryLength {
		problems = append(problems, fmt.Sprintf("cache.min_query_length (%d) must not be below search.min_query_length (%d)", c.Cache.MinQueryLength, c.Search.MinQueryLength))
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit <= 0 {
		problems = append(problems, "search.default_limit and search.max_limit must be positive")
	} else if c.Search.DefaultLimit > c.Search.MaxLimit {
		problems = append(problems, fmt.Sprintf("search.default_limit (%d) exceeds search.max_limit (%d)", c.Search.DefaultLimit, c.Search.MaxLimit))
	}
	if c.Search.BackendTimeout < 0 {
		problems = append(problems, fmt.Sprintf("search.backend_timeout must not be negative, got %s", c.Search.BackendTimeout))
	}
	if c.Search.RankCandidateLimit < 0 {
		problems = append(problems, fmt.Sprintf("search.rank_candidate_limit must not be negative, got %d", c.Search.RankCandidateLimit))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
