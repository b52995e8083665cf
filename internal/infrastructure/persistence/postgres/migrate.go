// Package postgres 提供 PostgreSQL 数据库访问层实现
package postgres

import (
	"context"
	"fmt"

	"roleplay-coach-api/internal/domain/entity"
)

// models 参与自动迁移的实体
var models = []any{
	&entity.Persona{},
	&entity.Scenario{},
	&entity.ScenarioRun{},
	&entity.PersonaRun{},
	&entity.ChatMessage{},
	&entity.Feedback{},
	&entity.LLMUsageEvent{},
}

// AutoMigrate 同步表结构
func (c *Client) AutoMigrate(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "postgres.AutoMigrate")
	defer span.End()

	if err := c.db.WithContext(ctx).AutoMigrate(models...); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}
