// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"roleplay-coach-api/internal/domain/entity"
)

type ChatMessageRepository struct {
	client *Client
}

func NewChatMessageRepository(client *Client) *ChatMessageRepository {
	return &ChatMessageRepository{client: client}
}

func (r *ChatMessageRepository) Create(ctx context.Context, msg *entity.ChatMessage) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatMessageRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(msg).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chat message: %w", err)
	}
	return nil
}

func (r *ChatMessageRepository) ListByPersonaRun(ctx context.Context, personaRunID string) ([]*entity.ChatMessage, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatMessageRepository.ListByPersonaRun")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var msgs []*entity.ChatMessage
	if err := db.Where("persona_run_id = ?", personaRunID).
		Order("seq ASC").
		Find(&msgs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	return msgs, nil
}

func (r *ChatMessageRepository) ListRecent(ctx context.Context, personaRunID string, limit int) ([]*entity.ChatMessage, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatMessageRepository.ListRecent")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var msgs []*entity.ChatMessage
	if err := db.Where("persona_run_id = ?", personaRunID).
		Order("seq DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list recent chat messages: %w", err)
	}

	// 倒序查询后恢复写入顺序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *ChatMessageRepository) NextSeq(ctx context.Context, personaRunID string) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatMessageRepository.NextSeq")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var maxSeq int
	if err := db.Model(&entity.ChatMessage{}).
		Where("persona_run_id = ?", personaRunID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get next message seq: %w", err)
	}
	return maxSeq + 1, nil
}
