package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client, "stream", time.Minute)
}

func TestRedisStore(t *testing.T) {
	mr, store := newRedis(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "pivot:1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, store.Set(ctx, "pivot:1", []byte("one"), 0))
	require.NoError(t, store.Set(ctx, "pivot:2", []byte("two"), 10*time.Second))

	assert.True(t, mr.Exists("stream:pivot:1"))
	assert.Equal(t, time.Minute, mr.TTL("stream:pivot:1"))
	assert.Equal(t, 10*time.Second, mr.TTL("stream:pivot:2"))

	got, err := store.Get(ctx, "pivot:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)

	require.NoError(t, store.Delete(ctx, "pivot:1", "", "pivot:2"))
	assert.False(t, mr.Exists("stream:pivot:1"))
	assert.False(t, mr.Exists("stream:pivot:2"))
	assert.NoError(t, store.Delete(ctx))

	assert.Error(t, store.Set(ctx, "", []byte("x"), 0))
}

func TestJSONHelpers(t *testing.T) {
	_, store := newRedis(t)
	ctx := context.Background()

	type doc struct {
		OrderID int64  `json:"orderId"`
		Status  string `json:"status"`
	}
	require.NoError(t, SetJSON(ctx, store, "doc", doc{OrderID: 4, Status: "shipped"}, 0))

	var got doc
	require.NoError(t, GetJSON(ctx, store, "doc", &got))
	assert.Equal(t, doc{OrderID: 4, Status: "shipped"}, got)

	require.NoError(t, store.Set(ctx, "broken", []byte("{"), 0))
	assert.Error(t, GetJSON(ctx, store, "broken", &got))
	assert.ErrorIs(t, GetJSON(ctx, store, "absent", &got), ErrCacheMiss)
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	store := Noop()
	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, store.Delete(ctx, "k"))
}
