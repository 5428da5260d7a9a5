package querycache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisStore creates a store backed by miniredis
func setupRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := NewRedisStore(RedisOptions{
		Address: mr.Addr(),
		Prefix:  "test_search",
		TTL:     ttl,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestNewRedisStore_InvalidTTL(t *testing.T) {
	_, err := NewRedisStore(RedisOptions{Address: "localhost:0"})
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestNewRedisStore_ConnectionFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(RedisOptions{Address: addr, TTL: time.Minute})
	assert.Error(t, err)
}

func TestNewRedisStore_URL(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(RedisOptions{URL: "redis://" + mr.Addr() + "/0", TTL: time.Minute})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, DefaultKeyPrefix, store.prefix)
}

func TestRedisStore_PutGet(t *testing.T) {
	store, mr := setupRedisStore(t, time.Minute)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, testKey(1))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, testKey(1), testResults("CMPUT101", "CMPUT201")))
	assert.True(t, mr.Exists("test_search:"+testKey(1).String()))

	got, ok, err := store.Get(ctx, testKey(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testResults("CMPUT101", "CMPUT201"), got)
}

func TestRedisStore_EmptyPayload(t *testing.T) {
	store, _ := setupRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testKey(1), nil))
	got, ok, err := store.Get(ctx, testKey(1))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestRedisStore_ServerSideExpiry(t *testing.T) {
	store, mr := setupRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testKey(1), testResults("MATH100")))

	mr.FastForward(59 * time.Second)
	_, ok, _ := store.Get(ctx, testKey(1))
	assert.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, _ = store.Get(ctx, testKey(1))
	assert.False(t, ok)
}

func TestRedisStore_CorruptEntry(t *testing.T) {
	store, mr := setupRedisStore(t, time.Minute)
	ctx := context.Background()

	rk := "test_search:" + testKey(1).String()
	require.NoError(t, mr.Set(rk, "{not json"))

	_, ok, err := store.Get(ctx, testKey(1))
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrCorruptEntry)
	assert.False(t, mr.Exists(rk), "corrupt entry must be deleted")
}

func TestRedisStore_ClearAndStats(t *testing.T) {
	store, mr := setupRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, mr.Set("unrelated", "keep"))
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Put(ctx, testKey(i), testResults("X")))
	}

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.Active)
	assert.Equal(t, 0, stats.Expired)
	assert.Equal(t, time.Minute, stats.TTL)

	require.NoError(t, store.Clear(ctx))

	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.True(t, mr.Exists("unrelated"), "clear must only touch prefixed keys")
}

func TestRedisStore_UnavailableAfterStart(t *testing.T) {
	store, mr := setupRedisStore(t, time.Minute)
	ctx := context.Background()

	mr.Close()

	_, ok, err := store.Get(ctx, testKey(1))
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Error(t, store.Put(ctx, testKey(1), testResults("X")))
}
