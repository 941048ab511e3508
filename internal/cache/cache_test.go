package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedis(ctx, mr.Addr(), "", 0)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get(ctx, "tenant-a", "search", "abc")
	assert.False(t, ok)

	c.Set(ctx, "tenant-a", "search", "abc", []byte(`{"hits":1}`), time.Hour)

	got, ok := c.Get(ctx, "tenant-a", "search", "abc")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"hits":1}`), got)

	// Keys are tenant-scoped.
	_, ok = c.Get(ctx, "tenant-b", "search", "abc")
	assert.False(t, ok)
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedis(ctx, mr.Addr(), "", 0)
	require.NoError(t, err)
	defer c.Close()

	c.Set(ctx, "tenant-a", "search", "abc", []byte("v"), time.Minute)
	mr.FastForward(2 * time.Minute)

	_, ok := c.Get(ctx, "tenant-a", "search", "abc")
	assert.False(t, ok)
}

func TestRedisCache_BadAddr(t *testing.T) {
	_, err := NewRedis(context.Background(), "127.0.0.1:1", "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}

func TestLocalCache(t *testing.T) {
	ctx := context.Background()
	c := NewLocal()
	defer c.Close()

	_, ok := c.Get(ctx, "tenant-a", "search", "abc")
	assert.False(t, ok)

	c.Set(ctx, "tenant-a", "search", "abc", []byte("v"), time.Hour)
	got, ok := c.Get(ctx, "tenant-a", "search", "abc")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	_, ok = c.Get(ctx, "tenant-b", "search", "abc")
	assert.False(t, ok)
}
