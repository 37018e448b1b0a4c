// Redis-backed rate limiter for the chat endpoint.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/savestateevan/stoicforge/app/config"
)

const (
	chatRateLimit  = 5
	chatRateWindow = 30 * time.Second
)

// RateLimiter counts requests per caller in fixed windows. It fails open:
// chat must keep working when Redis is down or unconfigured.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(cfg config.RedisConfig) *RateLimiter {
	l := &RateLimiter{limit: chatRateLimit, window: chatRateWindow}
	if cfg.Addr == "" {
		return l
	}
	l.client = redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return l
}

// Allow reports whether the caller identified by key may proceed.
func (l *RateLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil {
		return true
	}

	window := time.Now().Unix() / int64(l.window.Seconds())
	redisKey := fmt.Sprintf("ratelimit:chat:%s:%d", key, window)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		log.Printf("rate limiter unavailable, allowing request: %v", err)
		return true
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			log.Printf("rate limiter expire failed key=%s: %v", redisKey, err)
		}
	}
	return count <= int64(l.limit)
}

func (l *RateLimiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
