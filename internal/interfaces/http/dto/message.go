package dto

import (
	"roleplay-coach-api/internal/domain/entity"
)

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// MessageResponse 消息响应
type MessageResponse struct {
	ID            string `json:"id"`
	PersonaRunID  string `json:"persona_run_id"`
	Sender        string `json:"sender"`
	Message       string `json:"message"`
	Emotion       string `json:"emotion,omitempty"`
	EmotionReason string `json:"emotion_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func ToMessageResponse(m *entity.ChatMessage) *MessageResponse {
	if m == nil {
		return nil
	}
	return &MessageResponse{
		ID:            m.ID,
		PersonaRunID:  m.PersonaRunID,
		Sender:        string(m.Sender),
		Message:       m.Message,
		Emotion:       m.Emotion,
		EmotionReason: m.EmotionReason,
		CreatedAt:     formatTime(m.CreatedAt),
	}
}

// MessageListResponse 消息列表响应，按写入顺序
type MessageListResponse struct {
	Messages []*MessageResponse `json:"messages"`
}

func ToMessageListResponse(msgs []*entity.ChatMessage) *MessageListResponse {
	out := make([]*MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ToMessageResponse(m))
	}
	return &MessageListResponse{Messages: out}
}

// ExchangeResponse 一轮对话响应
type ExchangeResponse struct {
	UserMessage *MessageResponse    `json:"user_message"`
	AIMessage   *MessageResponse    `json:"ai_message"`
	Run         *PersonaRunResponse `json:"run"`
}
