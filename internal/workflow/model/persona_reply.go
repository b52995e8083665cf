package model

type PersonaReplyInput struct {
	PersonaName   string
	Gender        string
	MBTI          string
	Traits        []string
	SpeakingStyle string
	Background    string

	ScenarioTitle       string
	ScenarioDescription string
	Objectives          []string

	// Difficulty 1-4，越高角色越难被说服
	Difficulty int

	History     []TranscriptLine
	UserMessage string

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// PersonaReply 模型输出的角色回复
type PersonaReply struct {
	Message       string `json:"message"`
	Emotion       string `json:"emotion"`
	EmotionReason string `json:"emotion_reason"`
}

type PersonaReplyOutput struct {
	Reply PersonaReply
	Meta  LLMUsageMeta
}
