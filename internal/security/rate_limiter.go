package security

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/logger"
	"github.com/go-redis/redis/v8"
)

// RateLimiter counts requests per key in fixed windows. Redis is used when
// configured; local counters take over whenever Redis is unavailable.
type RateLimiter struct {
	redis       *redis.Client
	limit       int
	window      time.Duration
	now         func() time.Time
	mu          sync.Mutex
	localLimits map[string]*LocalLimit
}

// LocalLimit represents a local rate limit
type LocalLimit struct {
	Count     int
	LastReset time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window and key.
// redisClient may be nil.
func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:       redisClient,
		limit:       limit,
		window:      window,
		now:         time.Now,
		localLimits: make(map[string]*LocalLimit),
	}
}

// UserKey builds the limiter key for a user calling a method
func UserKey(userID, method string) string {
	return fmt.Sprintf("ratelimit:%s:%s", userID, method)
}

// Allow reports whether another request for key fits in the current window
func (rl *RateLimiter) Allow(ctx context.Context, key string) bool {
	if rl.redis != nil {
		allowed, err := rl.checkRedisLimit(ctx, key)
		if err == nil {
			return allowed
		}
		logger.WithError(err).Debug("Rate limiter falling back to local counters")
	}
	return rl.checkLocalLimit(key)
}

func (rl *RateLimiter) checkRedisLimit(ctx context.Context, key string) (bool, error) {
	bucket := rl.now().UnixNano() / int64(rl.window)
	windowKey := fmt.Sprintf("%s:%d", key, bucket)

	pipe := rl.redis.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return incr.Val() <= int64(rl.limit), nil
}

func (rl *RateLimiter) checkLocalLimit(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	local, exists := rl.localLimits[key]
	if !exists || now.Sub(local.LastReset) >= rl.window {
		rl.localLimits[key] = &LocalLimit{Count: 1, LastReset: now}
		return true
	}

	if local.Count >= rl.limit {
		return false
	}
	local.Count++
	return true
}

// CleanupExpiredLimits removes expired local limits
func (rl *RateLimiter) CleanupExpiredLimits() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, limit := range rl.localLimits {
		if now.Sub(limit.LastReset) >= rl.window {
			delete(rl.localLimits, key)
		}
	}
}

// RunCleanup calls CleanupExpiredLimits every interval until ctx is done
func (rl *RateLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.CleanupExpiredLimits()
		}
	}
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]interface{}{
		"active_limits":   len(rl.localLimits),
		"redis_available": rl.redis != nil,
		"limit":           rl.limit,
		"window":          rl.window.String(),
	}
}
