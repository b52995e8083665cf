// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Scenario 训练场景，PersonaIDs 为推荐对话顺序
type Scenario struct {
	ID          string                      `json:"id" gorm:"type:uuid;primaryKey"`
	Title       string                      `json:"title" gorm:"type:varchar(255);not null"`
	Description string                      `json:"description,omitempty" gorm:"type:text"`
	Objectives  datatypes.JSONSlice[string] `json:"objectives,omitempty"`
	Timeline    string                      `json:"timeline,omitempty" gorm:"type:varchar(255)"`
	PersonaIDs  datatypes.JSONSlice[string] `json:"persona_ids"`
	MaxTurns    int                         `json:"max_turns" gorm:"not null;default:0"`
	CreatedAt   time.Time                   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time                   `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Scenario) TableName() string {
	return "scenarios"
}

func (s *Scenario) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Snapshot 复制场景上下文，供场景会话固化
func (s *Scenario) Snapshot() ScenarioSnapshot {
	return ScenarioSnapshot{
		Title:       s.Title,
		Description: s.Description,
		Objectives:  append([]string(nil), s.Objectives...),
		Timeline:    s.Timeline,
		PersonaIDs:  append([]string(nil), s.PersonaIDs...),
		MaxTurns:    s.MaxTurns,
	}
}

// ScenarioSnapshot 场景会话创建时固化的场景副本
type ScenarioSnapshot struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Objectives  []string `json:"objectives,omitempty"`
	Timeline    string   `json:"timeline,omitempty"`
	PersonaIDs  []string `json:"persona_ids,omitempty"`
	MaxTurns    int      `json:"max_turns,omitempty"`
}
