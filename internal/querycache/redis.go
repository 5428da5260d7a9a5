package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dshills/catalogsearch-mcp/pkg/types"
)

const (
	// DefaultKeyPrefix namespaces cache keys in a shared Redis
	DefaultKeyPrefix = "course_search"

	scanBatchSize = 500
)

// RedisOptions configures a RedisStore
type RedisOptions struct {
	URL      string // takes precedence over Address/Password/DB when set
	Address  string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// RedisStore keeps entries in Redis with server-side expiry.
// Capacity is bounded by the server's maxmemory policy, not by the client.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTTL, opts.TTL)
	}

	var clientOpts *redis.Options
	if opts.URL != "" {
		parsed, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		clientOpts = parsed
	} else {
		clientOpts = &redis.Options{
			Addr:     opts.Address,
			Password: opts.Password,
			DB:       opts.DB,
		}
	}

	client := redis.NewClient(clientOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}, nil
}

func (s *RedisStore) redisKey(key Key) string {
	return s.prefix + ":" + key.String()
}

// Get returns the cached results. Undecodable payloads are deleted and
// reported as ErrCorruptEntry.
func (s *RedisStore) Get(ctx context.Context, key Key) ([]types.CourseResult, bool, error) {
	rk := s.redisKey(key)
	data, err := s.client.Get(ctx, rk).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get from redis: %w", err)
	}

	var results []types.CourseResult
	if err := json.Unmarshal(data, &results); err != nil || results == nil {
		_ = s.client.Del(ctx, rk).Err()
		return nil, false, fmt.Errorf("%w: %s", ErrCorruptEntry, rk)
	}

	return results, true, nil
}

// Put writes results with the store ttl; an existing key is overwritten and
// its expiry reset.
func (s *RedisStore) Put(ctx context.Context, key Key, results []types.CourseResult) error {
	if results == nil {
		results = []types.CourseResult{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := s.client.Set(ctx, s.redisKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}

	return nil
}

// Clear deletes every key under the store prefix
func (s *RedisStore) Clear(ctx context.Context) error {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return err
	}

	for start := 0; start < len(keys); start += scanBatchSize {
		end := start + scanBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := s.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete from redis: %w", err)
		}
	}

	return nil
}

// Stats counts keys under the store prefix. Redis reaps expired keys itself,
// so Expired is always zero and Capacity is reported as zero (unbounded).
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		Total:  len(keys),
		Active: len(keys),
		TTL:    s.ttl,
	}, nil
}

// Close closes the redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+":*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan redis keys: %w", err)
	}
	return keys, nil
}
