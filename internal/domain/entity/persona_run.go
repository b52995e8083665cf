// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PersonaRunStatus 会话状态
type PersonaRunStatus string

const (
	PersonaRunStatusActive    PersonaRunStatus = "active"
	PersonaRunStatusCompleted PersonaRunStatus = "completed"
)

// ConversationMode 对话模式
type ConversationMode string

const (
	ConversationModeMessenger     ConversationMode = "messenger"
	ConversationModeRealtimeVoice ConversationMode = "realtime_voice"
)

// IsValid 校验对话模式
func (m ConversationMode) IsValid() bool {
	return m == ConversationModeMessenger || m == ConversationModeRealtimeVoice
}

// 难度范围
const (
	MinDifficulty = 1
	MaxDifficulty = 4
)

// PersonaRun 用户与单个角色的一次对话
type PersonaRun struct {
	ID              string                              `json:"id" gorm:"type:uuid;primaryKey"`
	UserID          string                              `json:"user_id" gorm:"type:varchar(64);index;not null"`
	PersonaID       string                              `json:"persona_id" gorm:"type:uuid;not null;uniqueIndex:idx_persona_runs_scenario_persona,priority:2"`
	PersonaName     string                              `json:"persona_name" gorm:"type:varchar(128);not null"`
	PersonaSnapshot datatypes.JSONType[PersonaSnapshot] `json:"persona_snapshot"`
	ScenarioRunID   *string                             `json:"scenario_run_id,omitempty" gorm:"type:uuid;uniqueIndex:idx_persona_runs_scenario_persona,priority:1"`
	SequenceIndex   int                                 `json:"sequence_index" gorm:"not null;default:0"`
	Status          PersonaRunStatus                    `json:"status" gorm:"type:varchar(16);not null;default:'active'"`
	Mode            ConversationMode                    `json:"mode" gorm:"type:varchar(32);not null;default:'messenger'"`
	TurnCount       int                                 `json:"turn_count" gorm:"not null;default:0"`
	Difficulty      int                                 `json:"difficulty" gorm:"not null;default:2"`
	CreatedAt       time.Time                           `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time                           `json:"updated_at" gorm:"autoUpdateTime"`
	CompletedAt     *time.Time                          `json:"completed_at,omitempty"`
	ClosedAt        *time.Time                          `json:"closed_at,omitempty" gorm:"index"`
}

func (PersonaRun) TableName() string {
	return "persona_runs"
}

func (r *PersonaRun) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// NewPersonaRun 创建会话并固化角色快照
func NewPersonaRun(userID string, persona *Persona, scenarioRunID *string, mode ConversationMode, difficulty int) *PersonaRun {
	return &PersonaRun{
		UserID:          userID,
		PersonaID:       persona.ID,
		PersonaName:     persona.Name,
		PersonaSnapshot: datatypes.NewJSONType(persona.Snapshot()),
		ScenarioRunID:   scenarioRunID,
		Status:          PersonaRunStatusActive,
		Mode:            mode,
		Difficulty:      difficulty,
	}
}

// IsCompleted 是否已结束
func (r *PersonaRun) IsCompleted() bool {
	return r.Status == PersonaRunStatusCompleted
}

// Complete 结束会话，重复调用无副作用
func (r *PersonaRun) Complete(at time.Time) {
	if r.IsCompleted() {
		return
	}
	r.Status = PersonaRunStatusCompleted
	r.CompletedAt = &at
}

// RecordTurn 记录一轮对话，达到上限时结束会话
func (r *PersonaRun) RecordTurn(maxTurns int, at time.Time) {
	r.TurnCount++
	if maxTurns > 0 && r.TurnCount >= maxTurns {
		r.Complete(at)
	}
}
