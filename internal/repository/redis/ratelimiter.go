package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitKeyPrefix = "ratelimit:"
	rateLimitWindow    = time.Second
)

// RateLimiter implements domain.RateLimiter using Redis
type RateLimiter struct {
	client      *Client
	limitPerSec int
}

// NewRateLimiter creates a new RateLimiter
func NewRateLimiter(client *Client, limitPerSec int) *RateLimiter {
	return &RateLimiter{
		client:      client,
		limitPerSec: limitPerSec,
	}
}

func rateLimitKey(key string) string {
	return rateLimitKeyPrefix + key
}

// Allow checks if a delivery is allowed under the rate limit using a sliding window
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := rateLimitKey(key)
	now := time.Now()
	windowStart := now.Add(-rateLimitWindow)

	pipe := r.client.client.Pipeline()

	// Remove old entries outside the window
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano()))

	countCmd := pipe.ZCard(ctx, redisKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if countCmd.Val() >= int64(r.limitPerSec) {
		return false, nil
	}

	if err := r.client.client.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	}).Err(); err != nil {
		return false, fmt.Errorf("failed to record delivery: %w", err)
	}

	r.client.client.Expire(ctx, redisKey, 2*rateLimitWindow)

	return true, nil
}

// Wait blocks until a delivery is allowed
func (r *RateLimiter) Wait(ctx context.Context, key string) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		allowed, err := r.Allow(ctx, key)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CurrentRate returns the number of deliveries in the current window for key
func (r *RateLimiter) CurrentRate(ctx context.Context, key string) (int64, error) {
	redisKey := rateLimitKey(key)
	windowStart := time.Now().Add(-rateLimitWindow)

	pipe := r.client.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCard(ctx, redisKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to get current rate: %w", err)
	}

	return countCmd.Val(), nil
}
