package notification

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySentinelStore_ClaimOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySentinelStore(time.Minute)

	ok, err := store.Claim(ctx, "reminder:a:b", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Claim(ctx, "reminder:a:b", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Release(ctx, "reminder:a:b"))
	ok, err = store.Claim(ctx, "reminder:a:b", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisSentinelStore_ClaimOnceAndExpire(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisSentinelStore(client, "wp")

	ok, err := store.Claim(ctx, "reminder:a:b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("wp:sentinel:reminder:a:b"))

	ok, err = store.Claim(ctx, "reminder:a:b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = store.Claim(ctx, "reminder:a:b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Release(ctx, "reminder:a:b"))
	assert.False(t, mr.Exists("wp:sentinel:reminder:a:b"))
}
