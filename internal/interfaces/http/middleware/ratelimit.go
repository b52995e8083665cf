// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"roleplay-coach-api/pkg/logger"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerSecond 每秒稳定请求数，窗口内上限为 RequestsPerSecond + Burst
	RequestsPerSecond int
	Burst             int
	KeyPrefix         string
}

func (c RateLimitConfig) limit() int {
	rps := c.RequestsPerSecond
	if rps <= 0 {
		rps = 100
	}
	if c.Burst > 0 {
		return rps + c.Burst
	}
	return rps
}

// RateLimiter 滑动窗口限流器，由 redis.RateLimiter 实现
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// remainingReporter 可选能力：返回窗口内剩余配额
type remainingReporter interface {
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

// RateLimitKey 按用户（未认证时按 IP）与路由模板限流
func RateLimitKey(prefix string, c *gin.Context) string {
	subject := c.GetString("user_id")
	if subject == "" {
		subject = "ip:" + c.ClientIP()
	}
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return prefix + ":" + subject + ":" + c.Request.Method + " " + route
}

// RateLimit 限流中间件；限流器故障时放行
func RateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ratelimit"
	}
	limit := cfg.limit()
	reporter, _ := limiter.(remainingReporter)

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := RateLimitKey(cfg.KeyPrefix, c)

		allowed, err := limiter.Allow(ctx, key, limit, time.Second)
		if err != nil {
			logger.Warn(ctx, "rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if reporter != nil {
			if remaining, err := reporter.Remaining(ctx, key, limit, time.Second); err == nil {
				c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
			}
		}

		if !allowed {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":     http.StatusTooManyRequests,
				"message":  "rate limit exceeded",
				"trace_id": c.GetString("trace_id"),
			})
			return
		}
		c.Next()
	}
}
