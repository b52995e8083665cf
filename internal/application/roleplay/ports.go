package roleplay

import (
	"context"
	"time"

	"roleplay-coach-api/internal/infrastructure/messaging"
)

// EventPublisher 发布会话生命周期事件，由 messaging.Producer 实现
type EventPublisher interface {
	PublishConversationEvent(ctx context.Context, evt *messaging.ConversationEvent) (string, error)
}

// RateLimiter 滑动窗口限流，由 redis.RateLimiter 实现
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// QuotaChecker 检查用户 LLM 日配额，由 usage.QuotaChecker 实现
type QuotaChecker interface {
	CheckDailyTokens(ctx context.Context, userID string) (int64, error)
}

// RunCache 会话读缓存，未命中时合并并发回源，由 redis.Cache 实现
type RunCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (any, error)) ([]byte, error)
	Invalidate(ctx context.Context, keys ...string) error
}

// FeedbackCache 反馈缓存，只写一次
type FeedbackCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
}
