// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"roleplay-coach-api/internal/domain/entity"
	"roleplay-coach-api/internal/domain/repository"
)

type FeedbackRepository struct {
	client *Client
}

func NewFeedbackRepository(client *Client) *FeedbackRepository {
	return &FeedbackRepository{client: client}
}

func (r *FeedbackRepository) Create(ctx context.Context, feedback *entity.Feedback) error {
	ctx, span := tracer.Start(ctx, "postgres.FeedbackRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(feedback).Error; err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

func (r *FeedbackRepository) GetByConversationID(ctx context.Context, conversationID string) (*entity.Feedback, error) {
	ctx, span := tracer.Start(ctx, "postgres.FeedbackRepository.GetByConversationID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var feedback entity.Feedback
	if err := db.First(&feedback, "conversation_id = ?", conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return &feedback, nil
}
