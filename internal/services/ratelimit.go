package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RateLimiter allows one action per user per window.
type RateLimiter interface {
	Allow(ctx context.Context, userID primitive.ObjectID, action string, window time.Duration) (bool, error)
	TTL(ctx context.Context, userID primitive.ObjectID, action string) (time.Duration, error)
	// Release frees the window early, for actions that failed after Allow.
	Release(ctx context.Context, userID primitive.ObjectID, action string) error
}

type redisRateLimiter struct {
	rdb *redis.Client
}

// NewRedisRateLimiter returns nil when rdb is nil; callers treat a nil
// limiter as "no limit".
func NewRedisRateLimiter(rdb *redis.Client) RateLimiter {
	if rdb == nil {
		return nil
	}
	return &redisRateLimiter{rdb: rdb}
}

func rateLimitKey(userID primitive.ObjectID, action string) string {
	return fmt.Sprintf("rate_limit:user:%s:%s", userID.Hex(), action)
}

func (l *redisRateLimiter) Allow(ctx context.Context, userID primitive.ObjectID, action string, window time.Duration) (bool, error) {
	wasSet, err := l.rdb.SetNX(ctx, rateLimitKey(userID, action), "locked", window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit in redis: %w", err)
	}
	return wasSet, nil
}

func (l *redisRateLimiter) TTL(ctx context.Context, userID primitive.ObjectID, action string) (time.Duration, error) {
	return l.rdb.TTL(ctx, rateLimitKey(userID, action)).Result()
}

func (l *redisRateLimiter) Release(ctx context.Context, userID primitive.ObjectID, action string) error {
	return l.rdb.Del(ctx, rateLimitKey(userID, action)).Err()
}
