// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConversationType 决定会话结束后的去向
type ConversationType string

const (
	ConversationTypeScenario      ConversationType = "scenario"
	ConversationTypePersonaDirect ConversationType = "persona_direct"
)

// IsValid 校验会话类型
func (t ConversationType) IsValid() bool {
	return t == ConversationTypeScenario || t == ConversationTypePersonaDirect
}

// ScenarioRunStatus 场景会话状态
type ScenarioRunStatus string

const (
	ScenarioRunStatusActive    ScenarioRunStatus = "active"
	ScenarioRunStatusCompleted ScenarioRunStatus = "completed"
)

// ScenarioRun 一次场景尝试，按顺序拥有多个 PersonaRun
type ScenarioRun struct {
	ID               string                               `json:"id" gorm:"type:uuid;primaryKey"`
	UserID           string                               `json:"user_id" gorm:"type:varchar(64);index;not null"`
	ScenarioID       *string                              `json:"scenario_id,omitempty" gorm:"type:uuid;index"`
	ScenarioName     string                               `json:"scenario_name" gorm:"type:varchar(255);not null"`
	ConversationType ConversationType                     `json:"conversation_type" gorm:"type:varchar(32);not null;default:'scenario'"`
	Status           ScenarioRunStatus                    `json:"status" gorm:"type:varchar(16);not null;default:'active'"`
	Scenario         datatypes.JSONType[ScenarioSnapshot] `json:"scenario"`
	CreatedAt        time.Time                            `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time                            `json:"updated_at" gorm:"autoUpdateTime"`
	CompletedAt      *time.Time                           `json:"completed_at,omitempty"`
}

func (ScenarioRun) TableName() string {
	return "scenario_runs"
}

func (r *ScenarioRun) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// NewScenarioRun 基于场景创建场景会话
func NewScenarioRun(userID string, scenario *Scenario) *ScenarioRun {
	id := scenario.ID
	return &ScenarioRun{
		UserID:           userID,
		ScenarioID:       &id,
		ScenarioName:     scenario.Title,
		ConversationType: ConversationTypeScenario,
		Status:           ScenarioRunStatusActive,
		Scenario:         datatypes.NewJSONType(scenario.Snapshot()),
	}
}

// NewDirectScenarioRun 为直接与角色对话创建的无场景会话分组
func NewDirectScenarioRun(userID string, persona *Persona) *ScenarioRun {
	return &ScenarioRun{
		UserID:           userID,
		ScenarioName:     persona.Name,
		ConversationType: ConversationTypePersonaDirect,
		Status:           ScenarioRunStatusActive,
		Scenario: datatypes.NewJSONType(ScenarioSnapshot{
			Title:      persona.Name,
			PersonaIDs: []string{persona.ID},
		}),
	}
}

// PersonaIndex 返回角色在推荐顺序中的位置，不存在返回 -1
func (r *ScenarioRun) PersonaIndex(personaID string) int {
	for i, id := range r.Scenario.Data().PersonaIDs {
		if id == personaID {
			return i
		}
	}
	return -1
}
