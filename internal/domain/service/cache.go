package service

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// ResultCache 可注入的结果缓存，值以 JSON 存储
//
// 各键的失效策略：
//   - feedback:<id>             永不过期，不做失效，只由生成成功路径写入
//   - persona-run:<id>          写操作后失效
//   - conversations:active[:u]  写操作后失效
type ResultCache interface {
	// Get 未命中时返回 ErrCacheMiss
	Get(ctx context.Context, key string) ([]byte, error)
	// Set ttl 为 0 表示永不过期
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// FeedbackCacheTTL 反馈缓存永不过期
const FeedbackCacheTTL time.Duration = 0

// ActiveConversationsKey 活跃会话列表缓存键
const ActiveConversationsKey = "conversations:active"

// FeedbackKey 反馈缓存键
func FeedbackKey(conversationID string) string {
	return fmt.Sprintf("feedback:%s", conversationID)
}

// PersonaRunKey 会话缓存键
func PersonaRunKey(runID string) string {
	return fmt.Sprintf("persona-run:%s", runID)
}

// UserActiveConversationsKey 按用户区分的活跃会话列表缓存键
func UserActiveConversationsKey(userID string) string {
	return fmt.Sprintf("%s:%s", ActiveConversationsKey, userID)
}
