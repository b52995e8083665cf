package model

import "roleplay-coach-api/internal/domain/entity"

type FeedbackGenerateInput struct {
	PersonaName   string
	ScenarioTitle string
	Objectives    []string
	Difficulty    int

	Transcript []TranscriptLine

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// FeedbackReport 模型输出的反馈报告
type FeedbackReport struct {
	OverallScore     int                     `json:"overall_score"`
	Scores           []entity.ScoreItem      `json:"scores"`
	DetailedFeedback entity.DetailedFeedback `json:"detailed_feedback"`
}

type FeedbackGenerateOutput struct {
	Report  FeedbackReport
	RawJSON string
	Meta    LLMUsageMeta
}
