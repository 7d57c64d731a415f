// Package ratelimit implements per-client request rate limiting for the API
// gateway. A Redis-backed sliding window is used when a Redis URL is
// configured; otherwise an in-memory token bucket keeps single-instance
// deployments working.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/intelligence-service/platform/internal/logging"
)

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	// Reset is the unix timestamp at which the client's window frees up.
	Reset int64
}

// Limiter decides whether a client request may proceed.
type Limiter interface {
	Check(ctx context.Context, clientID string) (Decision, error)
}

// New builds a limiter. With a Redis URL the sliding-window limiter is used;
// an empty URL or a failed connection falls back to the in-memory limiter.
func New(redisURL string, limit int, period time.Duration, logger *logging.Logger) Limiter {
	if redisURL == "" {
		logger.Warn("no Redis URL configured, using in-memory rate limiting (not suitable for multi-instance deployments)")
		return NewMemoryLimiter(limit, period)
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.WithError(err).Warn("invalid Redis URL, using in-memory rate limiting")
		return NewMemoryLimiter(limit, period)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Redis unreachable, using in-memory rate limiting")
		return NewMemoryLimiter(limit, period)
	}

	logger.Info("rate limiter initialized with Redis")
	return NewRedisLimiter(client, limit, period, logger)
}

// RedisLimiter implements a sliding-window limiter over a Redis sorted set of
// request timestamps per client.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	period time.Duration
	logger *logging.Logger
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, limit int, period time.Duration, logger *logging.Logger) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, period: period, logger: logger}
}

// Check records the request and reports whether the client is within its
// window. Redis failures fail open so a broken limiter never takes the
// gateway down with it.
func (l *RedisLimiter) Check(ctx context.Context, clientID string) (Decision, error) {
	now := time.Now()
	key := fmt.Sprintf("rate_limit:%s:%d", clientID, int(l.period.Seconds()))
	cutoff := now.Add(-l.period)

	member := strconv.FormatInt(now.UnixNano(), 10)

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatFloat(unixSeconds(cutoff), 'f', -1, 64))
	pipe.ZAdd(ctx, key, &redis.Z{Score: unixSeconds(now), Member: member})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, l.period)

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.WithError(err).Error("Redis rate limit check failed, allowing request")
		return Decision{Allowed: true, Remaining: l.limit, Reset: now.Add(l.period).Unix()}, err
	}

	count := int(card.Val())
	allowed := count <= l.limit
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}

	reset := now.Add(l.period).Unix()
	if remaining == 0 {
		// Window frees up when the oldest recorded request ages out.
		oldest, err := l.client.ZRangeWithScores(ctx, key, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			reset = int64(oldest[0].Score) + int64(l.period.Seconds())
		}
	}

	return Decision{Allowed: allowed, Remaining: remaining, Reset: reset}, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
