// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"roleplay-coach-api/internal/domain/entity"
)

type ScenarioRunRepository struct {
	client *Client
}

func NewScenarioRunRepository(client *Client) *ScenarioRunRepository {
	return &ScenarioRunRepository{client: client}
}

func (r *ScenarioRunRepository) Create(ctx context.Context, run *entity.ScenarioRun) error {
	ctx, span := tracer.Start(ctx, "postgres.ScenarioRunRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(run).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create scenario run: %w", err)
	}
	return nil
}

func (r *ScenarioRunRepository) GetByID(ctx context.Context, id string) (*entity.ScenarioRun, error) {
	ctx, span := tracer.Start(ctx, "postgres.ScenarioRunRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var run entity.ScenarioRun
	if err := db.First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get scenario run: %w", err)
	}
	return &run, nil
}

func (r *ScenarioRunRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	ctx, span := tracer.Start(ctx, "postgres.ScenarioRunRepository.MarkCompleted")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.ScenarioRun{}).
		Where("id = ? AND status <> ?", id, entity.ScenarioRunStatusCompleted).
		Updates(map[string]any{
			"status":       entity.ScenarioRunStatusCompleted,
			"completed_at": at,
		}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to complete scenario run: %w", err)
	}
	return nil
}
