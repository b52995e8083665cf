package model

import "time"

// TranscriptLine 对话记录中的一行
type TranscriptLine struct {
	Sender string
	Text   string
}

type LLMUsageMeta struct {
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Temperature      float64
	GeneratedAt      time.Time
}
