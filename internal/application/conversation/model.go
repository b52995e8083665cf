package conversation

import (
	"time"

	"roleplay-coach-api/internal/domain/entity"
)

// PersonaRun 后端返回的角色会话
type PersonaRun struct {
	ID              string                  `json:"id"`
	PersonaID       string                  `json:"persona_id"`
	PersonaName     string                  `json:"persona_name"`
	PersonaSnapshot entity.PersonaSnapshot  `json:"persona_snapshot"`
	ScenarioRunID   string                  `json:"scenario_run_id,omitempty"`
	SequenceIndex   int                     `json:"sequence_index"`
	Status          entity.PersonaRunStatus `json:"status"`
	Mode            entity.ConversationMode `json:"mode"`
	TurnCount       int                     `json:"turn_count"`
	Difficulty      int                     `json:"difficulty"`
	CreatedAt       time.Time               `json:"created_at"`
	CompletedAt     *time.Time              `json:"completed_at,omitempty"`
	ClosedAt        *time.Time              `json:"closed_at,omitempty"`
}

// IsCompleted 会话是否已结束
func (r *PersonaRun) IsCompleted() bool {
	return r.Status == entity.PersonaRunStatusCompleted
}

// ScenarioRun 后端返回的场景会话
type ScenarioRun struct {
	ID               string                   `json:"id"`
	ScenarioID       string                   `json:"scenario_id,omitempty"`
	ScenarioName     string                   `json:"scenario_name"`
	ConversationType entity.ConversationType  `json:"conversation_type"`
	Status           entity.ScenarioRunStatus `json:"status"`
	Scenario         entity.ScenarioSnapshot  `json:"scenario"`
}

// ChatMessage 会话消息
type ChatMessage struct {
	ID            string        `json:"id"`
	PersonaRunID  string        `json:"persona_run_id"`
	Sender        entity.Sender `json:"sender"`
	Message       string        `json:"message"`
	Emotion       string        `json:"emotion,omitempty"`
	EmotionReason string        `json:"emotion_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Exchange 一轮对话的结果
type Exchange struct {
	UserMessage ChatMessage `json:"user_message"`
	AIMessage   ChatMessage `json:"ai_message"`
	Run         PersonaRun  `json:"run"`
}

// Feedback 会话反馈报告
type Feedback struct {
	ID               string                  `json:"id"`
	ConversationID   string                  `json:"conversation_id"`
	OverallScore     int                     `json:"overall_score"`
	Scores           []entity.ScoreItem      `json:"scores"`
	DetailedFeedback entity.DetailedFeedback `json:"detailed_feedback"`
	CreatedAt        time.Time               `json:"created_at"`
}

// ConversationSummary 活跃会话列表项
type ConversationSummary struct {
	ID            string                  `json:"id"`
	PersonaID     string                  `json:"persona_id"`
	PersonaName   string                  `json:"persona_name"`
	ScenarioRunID string                  `json:"scenario_run_id,omitempty"`
	Status        entity.PersonaRunStatus `json:"status"`
	Mode          entity.ConversationMode `json:"mode"`
	TurnCount     int                     `json:"turn_count"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// CreatePersonaRunRequest 创建会话请求
type CreatePersonaRunRequest struct {
	PersonaID     string                  `json:"persona_id"`
	ScenarioID    string                  `json:"scenario_id,omitempty"`
	ScenarioRunID string                  `json:"scenario_run_id,omitempty"`
	Mode          entity.ConversationMode `json:"mode"`
	Difficulty    int                     `json:"difficulty"`
}
