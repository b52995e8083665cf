// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"roleplay-coach-api/internal/domain/entity"
)

// PersonaRepository 角色仓储接口
type PersonaRepository interface {
	Create(ctx context.Context, persona *entity.Persona) error
	GetByID(ctx context.Context, id string) (*entity.Persona, error)
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.Persona], error)
}

// ScenarioRepository 场景仓储接口
type ScenarioRepository interface {
	Create(ctx context.Context, scenario *entity.Scenario) error
	GetByID(ctx context.Context, id string) (*entity.Scenario, error)
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.Scenario], error)
}
