package memory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(2, time.Hour)
	defer c.Close()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Minute))
	_, err = c.Get(ctx, "b")
	assert.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestLRUCacheEntryTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	c := NewLRUCache(8, time.Hour)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	now = now.Add(59 * time.Second)
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLRUCacheCopiesValues(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(0, 0)
	buf := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", buf, 0))
	buf[0] = 'x'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	c, err := NewRedisCache(ctx, RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Get(ctx, "session:x")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "session:x", []byte(`{"session_id":"x"}`), time.Hour))
	got, err := c.Get(ctx, "session:x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"session_id":"x"}`, string(got))
	assert.Equal(t, time.Hour, mr.TTL("session:x"))

	mr.FastForward(time.Hour + time.Second)
	_, err = c.Get(ctx, "session:x")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCacheUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisCache(context.Background(), RedisOptions{Addr: addr})
	assert.Error(t, err)
}
