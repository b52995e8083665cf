// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"roleplay-coach-api/internal/domain/entity"
)

// ScenarioRunRepository 场景会话仓储接口
type ScenarioRunRepository interface {
	Create(ctx context.Context, run *entity.ScenarioRun) error
	GetByID(ctx context.Context, id string) (*entity.ScenarioRun, error)
	MarkCompleted(ctx context.Context, id string, at time.Time) error
}

// PersonaRunRepository 角色会话仓储接口
type PersonaRunRepository interface {
	Create(ctx context.Context, run *entity.PersonaRun) error
	GetByID(ctx context.Context, id string) (*entity.PersonaRun, error)
	GetByIDForUpdate(ctx context.Context, id string) (*entity.PersonaRun, error)
	Update(ctx context.Context, run *entity.PersonaRun) error
	// FindByScenarioRunAndPersona 查找场景会话中指定角色的会话，不存在返回 nil
	FindByScenarioRunAndPersona(ctx context.Context, scenarioRunID, personaID string) (*entity.PersonaRun, error)
	ListByScenarioRun(ctx context.Context, scenarioRunID string) ([]*entity.PersonaRun, error)
	// ListActiveByUser 列出用户未关闭的会话，按最近更新排序
	ListActiveByUser(ctx context.Context, userID string, pagination Pagination) (*PagedResult[*entity.PersonaRun], error)
	Close(ctx context.Context, id string, at time.Time) error
}

// ChatMessageRepository 消息仓储接口
type ChatMessageRepository interface {
	Create(ctx context.Context, msg *entity.ChatMessage) error
	// ListByPersonaRun 按写入顺序返回全部消息
	ListByPersonaRun(ctx context.Context, personaRunID string) ([]*entity.ChatMessage, error)
	// ListRecent 返回最近 limit 条消息，仍按写入顺序排列
	ListRecent(ctx context.Context, personaRunID string, limit int) ([]*entity.ChatMessage, error)
	NextSeq(ctx context.Context, personaRunID string) (int, error)
}

// FeedbackRepository 反馈仓储接口
type FeedbackRepository interface {
	// Create 写入反馈，会话已有反馈时返回 ErrDuplicate
	Create(ctx context.Context, feedback *entity.Feedback) error
	GetByConversationID(ctx context.Context, conversationID string) (*entity.Feedback, error)
}
