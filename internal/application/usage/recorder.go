// Package usage 提供 LLM 用量流水与用户日配额
package usage

import (
	"context"
	"fmt"
	"strings"

	"roleplay-coach-api/internal/domain/entity"
	"roleplay-coach-api/internal/domain/repository"
	"roleplay-coach-api/internal/domain/service"
	"roleplay-coach-api/pkg/logger"
)

// Recorder 将 LLM 调用写入用量流水，实现 service.LLMUsageRecorder
type Recorder struct {
	usageRepo repository.LLMUsageEventRepository
}

func NewRecorder(usageRepo repository.LLMUsageEventRepository) *Recorder {
	return &Recorder{usageRepo: usageRepo}
}

func (r *Recorder) Record(ctx context.Context, in service.LLMUsageInput) error {
	if r == nil || r.usageRepo == nil {
		return nil
	}

	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil
	}
	if in.PromptTokens < 0 || in.CompletionTokens < 0 {
		return fmt.Errorf("invalid token usage")
	}

	evt := &entity.LLMUsageEvent{
		UserID:           userID,
		Provider:         strings.TrimSpace(in.Provider),
		Model:            strings.TrimSpace(in.Model),
		Workflow:         strings.TrimSpace(in.Workflow),
		TokensPrompt:     in.PromptTokens,
		TokensCompletion: in.CompletionTokens,
		DurationMs:       in.DurationMs,
	}
	if err := r.usageRepo.Create(ctx, evt); err != nil {
		logger.Warn(ctx, "failed to record llm usage", "error", err.Error())
	}
	return nil
}

var _ service.LLMUsageRecorder = (*Recorder)(nil)
