package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"roleplay-coach-api/internal/application/roleplay"
	"roleplay-coach-api/internal/domain/entity"
	"roleplay-coach-api/internal/interfaces/http/dto"
	"roleplay-coach-api/internal/interfaces/http/middleware"
)

// PersonaRunHandler 角色会话处理器
type PersonaRunHandler struct {
	chat ChatService
}

// NewPersonaRunHandler 创建角色会话处理器
func NewPersonaRunHandler(chat ChatService) *PersonaRunHandler {
	return &PersonaRunHandler{chat: chat}
}

// CreatePersonaRun 创建角色会话
// @Summary 创建角色会话
// @Description 指定 scenario_run_id 加入已有场景会话；仅指定 scenario_id 时新建场景会话；均为空时为自由对话
// @Tags PersonaRuns
// @Accept json
// @Produce json
// @Param body body dto.CreatePersonaRunRequest true "创建请求"
// @Success 201 {object} dto.Response[dto.PersonaRunResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/persona-runs [post]
func (h *PersonaRunHandler) CreatePersonaRun(c *gin.Context) {
	var req dto.CreatePersonaRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	run, err := h.chat.CreatePersonaRun(c.Request.Context(), middleware.GetUserIDFromGin(c), roleplay.CreatePersonaRunInput{
		PersonaID:     strings.TrimSpace(req.PersonaID),
		ScenarioID:    strings.TrimSpace(req.ScenarioID),
		ScenarioRunID: strings.TrimSpace(req.ScenarioRunID),
		Mode:          entity.ConversationMode(req.Mode),
		Difficulty:    req.Difficulty,
	})
	if err != nil {
		respondError(c, err, "failed to create persona run")
		return
	}

	dto.Created(c, dto.ToPersonaRunResponse(run))
}

// GetPersonaRun 获取角色会话
// @Summary 获取角色会话
// @Tags PersonaRuns
// @Produce json
// @Param rid path string true "会话 ID"
// @Success 200 {object} dto.Response[dto.PersonaRunResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/persona-runs/{rid} [get]
func (h *PersonaRunHandler) GetPersonaRun(c *gin.Context) {
	run, err := h.chat.GetPersonaRun(c.Request.Context(), middleware.GetUserIDFromGin(c), dto.BindPersonaRunID(c))
	if err != nil {
		respondError(c, err, "failed to get persona run")
		return
	}
	dto.Success(c, dto.ToPersonaRunResponse(run))
}

// ListMessages 获取会话消息
// @Summary 获取会话消息
// @Description 按写入顺序返回全部消息
// @Tags PersonaRuns
// @Produce json
// @Param rid path string true "会话 ID"
// @Success 200 {object} dto.Response[dto.MessageListResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/persona-runs/{rid}/messages [get]
func (h *PersonaRunHandler) ListMessages(c *gin.Context) {
	msgs, err := h.chat.ListMessages(c.Request.Context(), middleware.GetUserIDFromGin(c), dto.BindPersonaRunID(c))
	if err != nil {
		respondError(c, err, "failed to list messages")
		return
	}
	dto.Success(c, dto.ToMessageListResponse(msgs))
}

// SendMessage 发送消息并获取角色回复
// @Summary 发送消息
// @Tags PersonaRuns
// @Accept json
// @Produce json
// @Param rid path string true "会话 ID"
// @Param body body dto.SendMessageRequest true "消息"
// @Success 200 {object} dto.Response[dto.ExchangeResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/persona-runs/{rid}/messages [post]
func (h *PersonaRunHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.chat.SendMessage(c.Request.Context(), middleware.GetUserIDFromGin(c), dto.BindPersonaRunID(c), req.Message)
	if err != nil {
		respondError(c, err, "failed to send message")
		return
	}

	dto.Success(c, &dto.ExchangeResponse{
		UserMessage: dto.ToMessageResponse(res.UserMessage),
		AIMessage:   dto.ToMessageResponse(res.AIMessage),
		Run:         dto.ToPersonaRunResponse(res.Run),
	})
}

// CompleteRun 结束会话
// @Summary 结束会话
// @Description 已结束的会话重复调用返回当前状态
// @Tags PersonaRuns
// @Produce json
// @Param rid path string true "会话 ID"
// @Success 200 {object} dto.Response[dto.PersonaRunResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/persona-runs/{rid}/complete [post]
func (h *PersonaRunHandler) CompleteRun(c *gin.Context) {
	run, err := h.chat.CompleteRun(c.Request.Context(), middleware.GetUserIDFromGin(c), dto.BindPersonaRunID(c))
	if err != nil {
		respondError(c, err, "failed to complete persona run")
		return
	}
	dto.Success(c, dto.ToPersonaRunResponse(run))
}
