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

type PersonaRepository struct {
	client *Client
}

func NewPersonaRepository(client *Client) *PersonaRepository {
	return &PersonaRepository{client: client}
}

func (r *PersonaRepository) Create(ctx context.Context, persona *entity.Persona) error {
	ctx, span := tracer.Start(ctx, "postgres.PersonaRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(persona).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create persona: %w", err)
	}
	return nil
}

func (r *PersonaRepository) GetByID(ctx context.Context, id string) (*entity.Persona, error) {
	ctx, span := tracer.Start(ctx, "postgres.PersonaRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var persona entity.Persona
	if err := db.First(&persona, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get persona: %w", err)
	}
	return &persona, nil
}

func (r *PersonaRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Persona], error) {
	ctx, span := tracer.Start(ctx, "postgres.PersonaRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Persona{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count personas: %w", err)
	}

	var personas []*entity.Persona
	if err := query.Order("name ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&personas).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}

	return repository.NewPagedResult(personas, total, pagination), nil
}
