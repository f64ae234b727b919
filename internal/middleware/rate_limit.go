package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hypercore-one/bridge-monitor/internal/config"
	"github.com/hypercore-one/bridge-monitor/internal/metrics"
)

// RateLimiter implements sliding-window rate limiting over Redis
// sorted sets. A Redis outage fails open: throttling is protection,
// not a correctness requirement.
type RateLimiter struct {
	rdb    *redis.Client
	cfg    *config.RateLimitConfig
	logger *logrus.Logger
}

// NewRateLimiter wires the limiter.
func NewRateLimiter(rdb *redis.Client, cfg *config.RateLimitConfig, logger *logrus.Logger) *RateLimiter {
	return &RateLimiter{rdb: rdb, cfg: cfg, logger: logger}
}

// allow records one hit and reports whether it stays inside limit
// events per window. The sorted set holds one member per event scored
// by timestamp; expired members are trimmed before counting.
func (rl *RateLimiter) allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, reset time.Duration, err error) {
	now := time.Now()
	cutoff := now.Add(-window)

	pipe := rl.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff.UnixNano(), 10))
	count := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d-%d", now.UnixNano(), now.Nanosecond()),
	})
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, 0, err
	}

	used := int(count.Val()) + 1
	remaining = limit - used
	if remaining < 0 {
		remaining = 0
	}
	return used <= limit, remaining, window, nil
}

func (rl *RateLimiter) reject(c *gin.Context, reset time.Duration) {
	metrics.RateLimitRejections.Inc()
	c.Header("Retry-After", strconv.Itoa(int(reset.Seconds())))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"success": false,
		"error":   "rate_limited",
		"message": "Too many requests, slow down",
		"code":    "RATE_LIMITED",
	})
	c.Abort()
}

// PerUser throttles authenticated traffic using each user's own
// limits. Admins get the admin ceiling when their personal limit is
// lower. Must run after RequireAuth.
func (rl *RateLimiter) PerUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.Next()
			return
		}

		limit := user.RateLimitPerSecond + user.RateLimitBurst
		if user.IsAdmin {
			adminLimit := rl.cfg.AdminPerSecond + rl.cfg.AdminBurst
			if adminLimit > limit {
				limit = adminLimit
			}
		}
		if limit <= 0 {
			limit = rl.cfg.DefaultPerSecond + rl.cfg.DefaultBurst
		}

		key := "ratelimit:user:" + user.ID.String()
		allowed, remaining, reset, err := rl.allow(c.Request.Context(), key, limit, time.Second)
		if err != nil {
			rl.logger.WithError(err).Warn("rate limiter unavailable, request passed through")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10))

		if !allowed {
			rl.reject(c, reset)
			return
		}
		c.Next()
	}
}

// ForLogin throttles the login endpoint per client IP over a minute
// window, blunting credential stuffing.
func (rl *RateLimiter) ForLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := rl.cfg.LoginPerMinute + rl.cfg.LoginBurst
		key := "ratelimit:login:" + c.ClientIP()
		allowed, remaining, reset, err := rl.allow(c.Request.Context(), key, limit, time.Minute)
		if err != nil {
			rl.logger.WithError(err).Warn("rate limiter unavailable, request passed through")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10))

		if !allowed {
			rl.reject(c, reset)
			return
		}
		c.Next()
	}
}
