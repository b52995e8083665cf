// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"roleplay-coach-api/internal/domain/entity"
)

// LLMUsageEventRepository LLM 用量流水仓储接口
type LLMUsageEventRepository interface {
	Create(ctx context.Context, event *entity.LLMUsageEvent) error
	GetTokenUsage(ctx context.Context, userID string, startInclusive, endExclusive time.Time) (int64, error)
}
