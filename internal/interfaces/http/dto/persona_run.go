// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"roleplay-coach-api/internal/domain/entity"
)

// CreatePersonaRunRequest 创建角色会话请求
type CreatePersonaRunRequest struct {
	PersonaID     string `json:"persona_id" binding:"required"`
	ScenarioID    string `json:"scenario_id,omitempty"`
	ScenarioRunID string `json:"scenario_run_id,omitempty"`
	Mode          string `json:"mode" binding:"required"`
	Difficulty    int    `json:"difficulty" binding:"required"`
}

// PersonaRunResponse 角色会话响应
type PersonaRunResponse struct {
	ID              string                 `json:"id"`
	PersonaID       string                 `json:"persona_id"`
	PersonaName     string                 `json:"persona_name"`
	PersonaSnapshot entity.PersonaSnapshot `json:"persona_snapshot"`
	ScenarioRunID   string                 `json:"scenario_run_id,omitempty"`
	SequenceIndex   int                    `json:"sequence_index"`
	Status          string                 `json:"status"`
	Mode            string                 `json:"mode"`
	TurnCount       int                    `json:"turn_count"`
	Difficulty      int                    `json:"difficulty"`
	CreatedAt       string                 `json:"created_at"`
	UpdatedAt       string                 `json:"updated_at"`
	CompletedAt     *string                `json:"completed_at,omitempty"`
	ClosedAt        *string                `json:"closed_at,omitempty"`
}

// ToPersonaRunResponse 转换为响应
func ToPersonaRunResponse(r *entity.PersonaRun) *PersonaRunResponse {
	if r == nil {
		return nil
	}
	resp := &PersonaRunResponse{
		ID:              r.ID,
		PersonaID:       r.PersonaID,
		PersonaName:     r.PersonaName,
		PersonaSnapshot: r.PersonaSnapshot.Data(),
		SequenceIndex:   r.SequenceIndex,
		Status:          string(r.Status),
		Mode:            string(r.Mode),
		TurnCount:       r.TurnCount,
		Difficulty:      r.Difficulty,
		CreatedAt:       formatTime(r.CreatedAt),
		UpdatedAt:       formatTime(r.UpdatedAt),
		CompletedAt:     formatTimePtr(r.CompletedAt),
		ClosedAt:        formatTimePtr(r.ClosedAt),
	}
	if r.ScenarioRunID != nil {
		resp.ScenarioRunID = *r.ScenarioRunID
	}
	return resp
}

// ToPersonaRunListResponse 转换为列表响应
func ToPersonaRunListResponse(runs []*entity.PersonaRun) *PersonaRunListResponse {
	out := make([]*PersonaRunResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, ToPersonaRunResponse(r))
	}
	return &PersonaRunListResponse{PersonaRuns: out}
}

// PersonaRunListResponse 角色会话列表响应
type PersonaRunListResponse struct {
	PersonaRuns []*PersonaRunResponse `json:"persona_runs"`
}

// ConversationSummaryResponse 活跃会话列表项
type ConversationSummaryResponse struct {
	ID            string `json:"id"`
	PersonaID     string `json:"persona_id"`
	PersonaName   string `json:"persona_name"`
	ScenarioRunID string `json:"scenario_run_id,omitempty"`
	Status        string `json:"status"`
	Mode          string `json:"mode"`
	TurnCount     int    `json:"turn_count"`
	UpdatedAt     string `json:"updated_at"`
}

// ConversationListResponse 活跃会话列表响应
type ConversationListResponse struct {
	Conversations []*ConversationSummaryResponse `json:"conversations"`
}

// ToConversationListResponse 转换为活跃会话列表
func ToConversationListResponse(runs []*entity.PersonaRun) *ConversationListResponse {
	out := make([]*ConversationSummaryResponse, 0, len(runs))
	for _, r := range runs {
		item := &ConversationSummaryResponse{
			ID:          r.ID,
			PersonaID:   r.PersonaID,
			PersonaName: r.PersonaName,
			Status:      string(r.Status),
			Mode:        string(r.Mode),
			TurnCount:   r.TurnCount,
			UpdatedAt:   formatTime(r.UpdatedAt),
		}
		if r.ScenarioRunID != nil {
			item.ScenarioRunID = *r.ScenarioRunID
		}
		out = append(out, item)
	}
	return &ConversationListResponse{Conversations: out}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
