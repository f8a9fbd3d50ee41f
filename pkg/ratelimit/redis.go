package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSlidingWindow keeps one sorted set of request timestamps per key so
// every API instance shares the same counters.
type RedisSlidingWindow struct {
	client redis.Cmdable
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisSlidingWindow constructs a Redis-backed limiter.
func NewRedisSlidingWindow(client redis.Cmdable, prefix string, limit int, window time.Duration) *RedisSlidingWindow {
	limit, window = normalize(limit, window)
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisSlidingWindow{client: client, prefix: prefix, limit: limit, window: window, now: time.Now}
}

// Allow records the request and reports whether it is within the limit.
// Rejected requests are not counted against the window.
func (l *RedisSlidingWindow) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now()
	nowMs := now.UnixMilli()
	windowStart := nowMs - l.window.Milliseconds()
	redisKey := l.prefix + ":" + key
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()

	var card *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+strconv.FormatInt(windowStart, 10))
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(nowMs), Member: member})
		card = pipe.ZCard(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", redisKey, err)
	}

	count := int(card.Val())
	if count <= l.limit {
		return Result{Allowed: true, Limit: l.limit, Remaining: l.limit - count}, nil
	}

	if err := l.client.ZRem(ctx, redisKey, member).Err(); err != nil {
		return Result{}, fmt.Errorf("rate limit rollback %s: %w", redisKey, err)
	}
	retryAfter := l.window
	oldest, err := l.client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
	if err == nil && len(oldest) == 1 {
		retryAfter = time.Duration(int64(oldest[0].Score)+l.window.Milliseconds()-nowMs) * time.Millisecond
		if retryAfter < 0 {
			retryAfter = 0
		}
	}
	return Result{Allowed: false, Limit: l.limit, Remaining: 0, RetryAfter: retryAfter}, nil
}
