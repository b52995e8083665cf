package dto

import (
	"roleplay-coach-api/internal/domain/entity"
)

// FeedbackResponse 反馈报告响应
type FeedbackResponse struct {
	ID               string                  `json:"id"`
	ConversationID   string                  `json:"conversation_id"`
	OverallScore     int                     `json:"overall_score"`
	Scores           []entity.ScoreItem      `json:"scores"`
	DetailedFeedback entity.DetailedFeedback `json:"detailed_feedback"`
	CreatedAt        string                  `json:"created_at"`
}

func ToFeedbackResponse(f *entity.Feedback) *FeedbackResponse {
	if f == nil {
		return nil
	}
	scores := []entity.ScoreItem(f.Scores)
	if scores == nil {
		scores = []entity.ScoreItem{}
	}
	return &FeedbackResponse{
		ID:               f.ID,
		ConversationID:   f.ConversationID,
		OverallScore:     f.OverallScore,
		Scores:           scores,
		DetailedFeedback: f.DetailedFeedback.Data(),
		CreatedAt:        formatTime(f.CreatedAt),
	}
}
