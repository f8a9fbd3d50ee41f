package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestRedisSlidingWindow(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	clock := &fakeClock{t: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
	limiter := NewRedisSlidingWindow(client, "test", 2, time.Minute)
	limiter.now = clock.Now
	ctx := context.Background()

	res, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)

	clock.t = clock.t.Add(10 * time.Second)
	res, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	clock.t = clock.t.Add(10 * time.Second)
	res, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 40*time.Second, res.RetryAfter)

	other, err := limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	clock.t = clock.t.Add(41 * time.Second)
	res, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestMemorySlidingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
	limiter := NewMemorySlidingWindow(1, time.Minute)
	limiter.now = clock.Now
	ctx := context.Background()

	res, _ := limiter.Allow(ctx, "ip")
	assert.True(t, res.Allowed)

	clock.t = clock.t.Add(30 * time.Second)
	res, _ = limiter.Allow(ctx, "ip")
	assert.False(t, res.Allowed)
	assert.Equal(t, 30*time.Second, res.RetryAfter)

	clock.t = clock.t.Add(31 * time.Second)
	res, _ = limiter.Allow(ctx, "ip")
	assert.True(t, res.Allowed)
}

func TestRedisSlidingWindowKeyLayout(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	for _, prefix := range []string{"ratelimit", "ratelimit:"} {
		server.FlushAll()
		limiter := NewRedisSlidingWindow(client, prefix, 5, time.Minute)
		_, err := limiter.Allow(context.Background(), "login:10.0.0.1")
		require.NoError(t, err)

		assert.True(t, server.Exists("ratelimit:login:10.0.0.1"), "prefix=%q", prefix)
		assert.False(t, server.Exists("ratelimit::login:10.0.0.1"), "prefix=%q", prefix)
	}
}
