package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLimiter struct {
	mu    sync.Mutex
	hits  map[string]int
	limit int
	err   error
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	l.limit = limit
	l.hits[key]++
	return l.hits[key] <= limit, nil
}

func (l *countingLimiter) Remaining(_ context.Context, key string, limit int, _ time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := limit - l.hits[key]; n > 0 {
		return n, nil
	}
	return 0, nil
}

func newRateLimitEngine(cfg RateLimitConfig, limiter RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-User"); uid != "" {
			c.Set("user_id", uid)
		}
		c.Next()
	})
	r.Use(RateLimit(cfg, limiter))
	r.GET("/v1/personas/:pid", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doGet(r *gin.Engine, path, user string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BurstAndHeaders(t *testing.T) {
	limiter := &countingLimiter{hits: map[string]int{}}
	r := newRateLimitEngine(RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 1, KeyPrefix: "rl"}, limiter)

	w := doGet(r, "/v1/personas/a", "u1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	// 同一路由模板共享配额
	assert.Equal(t, http.StatusOK, doGet(r, "/v1/personas/b", "u1").Code)
	w = doGet(r, "/v1/personas/c", "u1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// 其他用户不受影响
	assert.Equal(t, http.StatusOK, doGet(r, "/v1/personas/a", "u2").Code)
	assert.Contains(t, limiter.hits, "rl:u1:GET /v1/personas/:pid")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	limiter := &countingLimiter{hits: map[string]int{}, err: errors.New("redis down")}
	r := newRateLimitEngine(RateLimitConfig{Enabled: true, RequestsPerSecond: 1}, limiter)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doGet(r, "/v1/personas/a", "u1").Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	limiter := &countingLimiter{hits: map[string]int{}}
	r := newRateLimitEngine(RateLimitConfig{RequestsPerSecond: 1}, limiter)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doGet(r, "/v1/personas/a", "").Code)
	}
	assert.Empty(t, limiter.hits)
}
