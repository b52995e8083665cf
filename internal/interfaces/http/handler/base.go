// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"roleplay-coach-api/internal/application/roleplay"
	"roleplay-coach-api/internal/domain/entity"
	"roleplay-coach-api/internal/domain/repository"
	"roleplay-coach-api/internal/interfaces/http/dto"
	apperrors "roleplay-coach-api/pkg/errors"
	"roleplay-coach-api/pkg/logger"
)

// ChatService 会话用例，由 roleplay.ChatService 实现
type ChatService interface {
	CreatePersonaRun(ctx context.Context, userID string, in roleplay.CreatePersonaRunInput) (*entity.PersonaRun, error)
	CreateScenarioRun(ctx context.Context, userID, scenarioID string) (*entity.ScenarioRun, error)
	GetPersonaRun(ctx context.Context, userID, runID string) (*entity.PersonaRun, error)
	GetScenarioRun(ctx context.Context, userID, scenarioRunID string) (*entity.ScenarioRun, error)
	FindPersonaRun(ctx context.Context, userID, scenarioRunID, personaID string) (*entity.PersonaRun, error)
	ListScenarioPersonaRuns(ctx context.Context, userID, scenarioRunID string) ([]*entity.PersonaRun, error)
	ListMessages(ctx context.Context, userID, runID string) ([]*entity.ChatMessage, error)
	SendMessage(ctx context.Context, userID, runID, text string) (*roleplay.SendMessageResult, error)
	CompleteRun(ctx context.Context, userID, runID string) (*entity.PersonaRun, error)
	CloseConversation(ctx context.Context, userID, runID string) error
	ListActiveConversations(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.PersonaRun], error)
}

// FeedbackService 反馈用例，由 roleplay.FeedbackService 实现
type FeedbackService interface {
	GetFeedback(ctx context.Context, userID, conversationID string) (*entity.Feedback, error)
	GenerateFeedback(ctx context.Context, userID, conversationID string) (*entity.Feedback, bool, error)
}

var (
	_ ChatService     = (*roleplay.ChatService)(nil)
	_ FeedbackService = (*roleplay.FeedbackService)(nil)
)

// respondError 将服务层错误映射为统一错误响应
func respondError(c *gin.Context, err error, msg string) {
	ctx := c.Request.Context()

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code != apperrors.CodeUnknown {
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Error(ctx, msg, err)
		}
		dto.AppError(c, appErr)
		return
	}

	logger.Error(ctx, msg, err)
	dto.InternalError(c, msg)
}
