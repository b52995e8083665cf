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

type ScenarioRepository struct {
	client *Client
}

func NewScenarioRepository(client *Client) *ScenarioRepository {
	return &ScenarioRepository{client: client}
}

func (r *ScenarioRepository) Create(ctx context.Context, scenario *entity.Scenario) error {
	ctx, span := tracer.Start(ctx, "postgres.ScenarioRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(scenario).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create scenario: %w", err)
	}
	return nil
}

func (r *ScenarioRepository) GetByID(ctx context.Context, id string) (*entity.Scenario, error) {
	ctx, span := tracer.Start(ctx, "postgres.ScenarioRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var scenario entity.Scenario
	if err := db.First(&scenario, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}
	return &scenario, nil
}

func (r *ScenarioRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Scenario], error) {
	ctx, span := tracer.Start(ctx, "postgres.ScenarioRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Scenario{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count scenarios: %w", err)
	}

	var scenarios []*entity.Scenario
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&scenarios).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}

	return repository.NewPagedResult(scenarios, total, pagination), nil
}
