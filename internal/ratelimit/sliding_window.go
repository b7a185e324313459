package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/aman-churiwal/api-tracker/internal/storage"
	"github.com/redis/go-redis/v9"
)

// SlidingWindowLimiter bounds how fast the log-browsing endpoints can
// be hit; the queries behind them are not cheap.
type SlidingWindowLimiter struct {
	redis  *storage.RedisClient
	limit  int
	window time.Duration
}

func NewSlidingWindowLimiter(redis *storage.RedisClient, limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		redis:  redis,
		limit:  limit,
		window: window,
	}
}

func (s *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("ratelimit:sliding:%s", key)
	now := time.Now()

	windowStart := now.Add(-s.window)

	// Sorted set with request timestamps as scores
	pipe := s.redis.Pipeline()

	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCard(ctx, redisKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	count := countCmd.Val()

	if count < int64(s.limit) {
		_ = s.redis.ZAdd(ctx, redisKey, redis.Z{
			Score:  float64(now.UnixNano()),
			Member: fmt.Sprintf("%d", now.UnixNano()),
		})
		_ = s.redis.Expire(ctx, redisKey, s.window)
		return true, nil
	}

	return false, nil
}

func (s *SlidingWindowLimiter) Remaining(ctx context.Context, key string) (int, error) {
	redisKey := fmt.Sprintf("ratelimit:sliding:%s", key)
	now := time.Now()
	windowStart := now.Add(-s.window)

	count, err := s.redis.ZCount(ctx, redisKey, fmt.Sprintf("%d", windowStart.UnixNano()), fmt.Sprintf("%d", now.UnixNano()))
	if err != nil {
		return 0, err
	}

	remaining := s.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (s *SlidingWindowLimiter) Limit() int {
	return s.limit
}
