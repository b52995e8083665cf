package handler

import (
	"github.com/gin-gonic/gin"

	"roleplay-coach-api/internal/domain/repository"
	"roleplay-coach-api/internal/interfaces/http/dto"
	"roleplay-coach-api/internal/interfaces/http/middleware"
)

// ConversationHandler 会话列表、关闭与反馈
type ConversationHandler struct {
	chat     ChatService
	feedback FeedbackService
}

func NewConversationHandler(chat ChatService, feedback FeedbackService) *ConversationHandler {
	return &ConversationHandler{chat: chat, feedback: feedback}
}

// ListActive 活跃会话列表
// @Summary 活跃会话列表
// @Tags Conversations
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[dto.ConversationListResponse]
// @Router /v1/conversations/active [get]
func (h *ConversationHandler) ListActive(c *gin.Context) {
	pageReq := dto.BindPage(c)

	page, err := h.chat.ListActiveConversations(c.Request.Context(), middleware.GetUserIDFromGin(c),
		repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		respondError(c, err, "failed to list active conversations")
		return
	}

	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(page.Total))
	dto.SuccessWithPage(c, dto.ToConversationListResponse(page.Items), meta)
}

// Close 关闭会话
// @Summary 关闭会话
// @Description 会话从活跃列表移除，数据保留
// @Tags Conversations
// @Param cid path string true "会话 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/conversations/{cid}/close [post]
func (h *ConversationHandler) Close(c *gin.Context) {
	if err := h.chat.CloseConversation(c.Request.Context(), middleware.GetUserIDFromGin(c), dto.BindConversationID(c)); err != nil {
		respondError(c, err, "failed to close conversation")
		return
	}
	dto.NoContent(c)
}

// GetFeedback 获取反馈
// @Summary 获取会话反馈
// @Description 尚未生成时返回 404
// @Tags Conversations
// @Produce json
// @Param cid path string true "会话 ID"
// @Success 200 {object} dto.Response[dto.FeedbackResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/conversations/{cid}/feedback [get]
func (h *ConversationHandler) GetFeedback(c *gin.Context) {
	fb, err := h.feedback.GetFeedback(c.Request.Context(), middleware.GetUserIDFromGin(c), dto.BindConversationID(c))
	if err != nil {
		respondError(c, err, "failed to get feedback")
		return
	}
	dto.Success(c, dto.ToFeedbackResponse(fb))
}

// GenerateFeedback 生成反馈
// @Summary 生成会话反馈
// @Description 会话须已结束；已有反馈时直接返回 200
// @Tags Conversations
// @Produce json
// @Param cid path string true "会话 ID"
// @Success 201 {object} dto.Response[dto.FeedbackResponse]
// @Success 200 {object} dto.Response[dto.FeedbackResponse]
// @Failure 409 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/conversations/{cid}/feedback [post]
func (h *ConversationHandler) GenerateFeedback(c *gin.Context) {
	fb, created, err := h.feedback.GenerateFeedback(c.Request.Context(), middleware.GetUserIDFromGin(c), dto.BindConversationID(c))
	if err != nil {
		respondError(c, err, "failed to generate feedback")
		return
	}
	if created {
		dto.Created(c, dto.ToFeedbackResponse(fb))
		return
	}
	dto.Success(c, dto.ToFeedbackResponse(fb))
}
