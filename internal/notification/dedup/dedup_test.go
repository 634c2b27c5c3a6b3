package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisStore(client, time.Hour)
}

func TestRedisStore_SeenAfterMark(t *testing.T) {
	mr, store := setupMiniredis(t)
	ctx := context.Background()

	seen, err := store.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Mark(ctx, "evt-1"))

	seen, err = store.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.True(t, mr.Exists("notify:event:evt-1"))
	assert.Equal(t, time.Hour, mr.TTL("notify:event:evt-1"))
}

func TestRedisStore_Expires(t *testing.T) {
	mr, store := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, store.Mark(ctx, "evt-2"))
	mr.FastForward(2 * time.Hour)

	seen, err := store.Seen(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisStore_EmptyEventID(t *testing.T) {
	mr, store := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, store.Mark(ctx, ""))
	seen, err := store.Seen(ctx, "")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Empty(t, mr.Keys())
}

func TestRedisStore_ConnectionError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, time.Minute)

	mock.ExpectExists("notify:event:evt-3").SetErr(errors.New("connection refused"))

	_, err := store.Seen(context.Background(), "evt-3")

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_MarkUsesTTL(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, 24*time.Hour)

	mock.Regexp().ExpectSet("notify:event:evt-4", `.+`, 24*time.Hour).SetVal("OK")

	require.NoError(t, store.Mark(context.Background(), "evt-4"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoopStore(t *testing.T) {
	var store Store = NoopStore{}
	seen, err := store.Seen(context.Background(), "evt")
	assert.NoError(t, err)
	assert.False(t, seen)
	assert.NoError(t, store.Mark(context.Background(), "evt"))
}
