// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"roleplay-coach-api/internal/domain/entity"
	"roleplay-coach-api/internal/domain/repository"
)

type PersonaRunRepository struct {
	client *Client
}

func NewPersonaRunRepository(client *Client) *PersonaRunRepository {
	return &PersonaRunRepository{client: client}
}

func (r *PersonaRunRepository) Create(ctx context.Context, run *entity.PersonaRun) error {
	ctx, span := tracer.Start(ctx, "postgres.PersonaRunRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(run).Error; err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create persona run: %w", err)
	}
	return nil
}

func (r *PersonaRunRepository) GetByID(ctx context.Context, id string) (*entity.PersonaRun, error) {
	ctx, span := tracer.Start(ctx, "postgres.PersonaRunRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var run entity.PersonaRun
	if err := db.First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get persona run: %w", err)
	}
	return &run, nil
}

func (r *PersonaRunRepository) GetByIDForUpdate(ctx context.Context, id string) (*entity.PersonaRun, error) {
	ctx, span := tracer.Start(ctx, "postgres.PersonaRunRepository.GetByIDForUpdate")
	defer span.End()

	db := getDB(ctx, r.client.db).Clauses(clause.Locking{Strength: "UPDATE"})
	var run entity.PersonaRun
	if err := db.First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get persona run for update: %w", err)
	}
	return &run, nil
}

func (r *PersonaRunRepository) Update(ctx context.Context, run *entity.PersonaRun) error {
	ctx, span := tracer.Start(ctx, "postgres.PersonaRunRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(run).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update persona run: %w", err)
	}
	return nil
}

func (r *PersonaRunRepository) FindByScenarioRunAndPersona(ctx context.Context, scenarioRunID, personaID string) (*entity.PersonaRun, error) {
	ctx, span := tracer.Start(ctx, "postgres.PersonaRunRepository.FindByScenarioRunAndPersona")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var run entity.PersonaRun
	if err := db.Where("scenario_run_id = ? AND persona_id = ?", scenarioRunID, personaID).
		First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to find persona run: %w", err)
	}
	return &run, nil
}

func (r *PersonaRunRepository) ListByScenarioRun(ctx context.Context, scenarioRunID string) ([]*entity.PersonaRun, error) {
	ctx, span := tracer.Start(ctx, "postgres.PersonaRunRepository.ListByScenarioRun")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var runs []*entity.PersonaRun
	if err := db.Where("scenario_run_id = ?", scenarioRunID).
		Order("sequence_index ASC").
		Find(&runs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list persona runs: %w", err)
	}
	return runs, nil
}

func (r *PersonaRunRepository) ListActiveByUser(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.PersonaRun], error) {
	ctx, span := tracer.Start(ctx, "postgres.PersonaRunRepository.ListActiveByUser")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.PersonaRun{}).Where("user_id = ? AND closed_at IS NULL", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count active persona runs: %w", err)
	}

	var runs []*entity.PersonaRun
	if err := query.Order("updated_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&runs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list active persona runs: %w", err)
	}

	return repository.NewPagedResult(runs, total, pagination), nil
}

func (r *PersonaRunRepository) Close(ctx context.Context, id string, at time.Time) error {
	ctx, span := tracer.Start(ctx, "postgres.PersonaRunRepository.Close")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.PersonaRun{}).
		Where("id = ? AND closed_at IS NULL", id).
		Update("closed_at", at).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to close persona run: %w", err)
	}
	return nil
}
