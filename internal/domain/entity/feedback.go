// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ScoreItem 单项评分
type ScoreItem struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Icon     string `json:"icon,omitempty"`
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// DevelopmentPlan 短中长期成长计划
type DevelopmentPlan struct {
	ShortTerm  []string `json:"short_term,omitempty"`
	MediumTerm []string `json:"medium_term,omitempty"`
	LongTerm   []string `json:"long_term,omitempty"`
}

// TimeStatistics 对话用时统计
type TimeStatistics struct {
	TotalSeconds           int     `json:"total_seconds"`
	AverageResponseSeconds float64 `json:"average_response_seconds"`
	TurnCount              int     `json:"turn_count"`
}

// DetailedFeedback 结构化反馈详情
type DetailedFeedback struct {
	Strengths          []string        `json:"strengths,omitempty"`
	Improvements       []string        `json:"improvements,omitempty"`
	NextSteps          []string        `json:"next_steps,omitempty"`
	BehaviorGuides     []string        `json:"behavior_guides,omitempty"`
	ConversationGuides []string        `json:"conversation_guides,omitempty"`
	DevelopmentPlan    DevelopmentPlan `json:"development_plan"`
	SequenceAnalysis   string          `json:"sequence_analysis,omitempty"`
	StrategyAnalysis   string          `json:"strategy_analysis,omitempty"`
	TimeStatistics     *TimeStatistics `json:"time_statistics,omitempty"`
}

// Feedback 会话反馈报告，每个会话至多一份，生成后不再变更
type Feedback struct {
	ID               string                               `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID   string                               `json:"conversation_id" gorm:"type:uuid;uniqueIndex;not null"`
	UserID           string                               `json:"user_id" gorm:"type:varchar(64);index;not null"`
	OverallScore     int                                  `json:"overall_score" gorm:"not null;default:0"`
	Scores           datatypes.JSONSlice[ScoreItem]       `json:"scores"`
	DetailedFeedback datatypes.JSONType[DetailedFeedback] `json:"detailed_feedback"`
	CreatedAt        time.Time                            `json:"created_at" gorm:"autoCreateTime"`
}

func (Feedback) TableName() string {
	return "feedbacks"
}

func (f *Feedback) BeforeCreate(_ *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
