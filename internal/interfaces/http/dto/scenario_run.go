package dto

import (
	"roleplay-coach-api/internal/domain/entity"
)

// CreateScenarioRunRequest 创建场景会话请求
type CreateScenarioRunRequest struct {
	ScenarioID string `json:"scenario_id" binding:"required"`
}

// ScenarioRunResponse 场景会话响应
type ScenarioRunResponse struct {
	ID               string                  `json:"id"`
	ScenarioID       string                  `json:"scenario_id,omitempty"`
	ScenarioName     string                  `json:"scenario_name"`
	ConversationType string                  `json:"conversation_type"`
	Status           string                  `json:"status"`
	Scenario         entity.ScenarioSnapshot `json:"scenario"`
	CreatedAt        string                  `json:"created_at"`
	CompletedAt      *string                 `json:"completed_at,omitempty"`
}

func ToScenarioRunResponse(r *entity.ScenarioRun) *ScenarioRunResponse {
	if r == nil {
		return nil
	}
	resp := &ScenarioRunResponse{
		ID:               r.ID,
		ScenarioName:     r.ScenarioName,
		ConversationType: string(r.ConversationType),
		Status:           string(r.Status),
		Scenario:         r.Scenario.Data(),
		CreatedAt:        formatTime(r.CreatedAt),
		CompletedAt:      formatTimePtr(r.CompletedAt),
	}
	if r.ScenarioID != nil {
		resp.ScenarioID = *r.ScenarioID
	}
	return resp
}
