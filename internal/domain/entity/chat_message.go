// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sender 消息发送方
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// ChatMessage 会话中的一条消息，写入后不可变
type ChatMessage struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey"`
	PersonaRunID  string    `json:"persona_run_id" gorm:"type:uuid;not null;index:idx_chat_messages_run_seq,priority:1"`
	Seq           int       `json:"seq" gorm:"not null;index:idx_chat_messages_run_seq,priority:2"`
	Sender        Sender    `json:"sender" gorm:"type:varchar(8);not null"`
	Message       string    `json:"message" gorm:"type:text;not null"`
	Emotion       string    `json:"emotion,omitempty" gorm:"type:varchar(32)"`
	EmotionReason string    `json:"emotion_reason,omitempty" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func (m *ChatMessage) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// NewChatMessage 创建消息
func NewChatMessage(personaRunID string, seq int, sender Sender, message string) *ChatMessage {
	return &ChatMessage{
		PersonaRunID: personaRunID,
		Seq:          seq,
		Sender:       sender,
		Message:      message,
		CreatedAt:    time.Now(),
	}
}
