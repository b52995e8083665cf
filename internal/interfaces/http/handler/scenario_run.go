package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"roleplay-coach-api/internal/interfaces/http/dto"
	"roleplay-coach-api/internal/interfaces/http/middleware"
)

// ScenarioRunHandler 场景会话处理器
type ScenarioRunHandler struct {
	chat ChatService
}

func NewScenarioRunHandler(chat ChatService) *ScenarioRunHandler {
	return &ScenarioRunHandler{chat: chat}
}

// CreateScenarioRun 新建场景会话
// @Summary 新建场景会话
// @Tags ScenarioRuns
// @Accept json
// @Produce json
// @Param body body dto.CreateScenarioRunRequest true "创建请求"
// @Success 201 {object} dto.Response[dto.ScenarioRunResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/scenario-runs [post]
func (h *ScenarioRunHandler) CreateScenarioRun(c *gin.Context) {
	var req dto.CreateScenarioRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	sr, err := h.chat.CreateScenarioRun(c.Request.Context(), middleware.GetUserIDFromGin(c), strings.TrimSpace(req.ScenarioID))
	if err != nil {
		respondError(c, err, "failed to create scenario run")
		return
	}
	dto.Created(c, dto.ToScenarioRunResponse(sr))
}

// GetScenarioRun 获取场景会话
// @Summary 获取场景会话
// @Tags ScenarioRuns
// @Produce json
// @Param srid path string true "场景会话 ID"
// @Success 200 {object} dto.Response[dto.ScenarioRunResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/scenario-runs/{srid} [get]
func (h *ScenarioRunHandler) GetScenarioRun(c *gin.Context) {
	sr, err := h.chat.GetScenarioRun(c.Request.Context(), middleware.GetUserIDFromGin(c), dto.BindScenarioRunID(c))
	if err != nil {
		respondError(c, err, "failed to get scenario run")
		return
	}
	dto.Success(c, dto.ToScenarioRunResponse(sr))
}

// ListPersonaRuns 场景会话下的角色会话
// @Summary 查找或列出场景会话下的角色会话
// @Description 带 persona_id 时返回该角色的会话（不存在为 404），否则按顺序列出全部
// @Tags ScenarioRuns
// @Produce json
// @Param srid path string true "场景会话 ID"
// @Param persona_id query string false "角色 ID"
// @Success 200 {object} dto.Response[dto.PersonaRunResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/scenario-runs/{srid}/persona-runs [get]
func (h *ScenarioRunHandler) ListPersonaRuns(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserIDFromGin(c)
	scenarioRunID := dto.BindScenarioRunID(c)

	if personaID := strings.TrimSpace(c.Query("persona_id")); personaID != "" {
		run, err := h.chat.FindPersonaRun(ctx, userID, scenarioRunID, personaID)
		if err != nil {
			respondError(c, err, "failed to find persona run")
			return
		}
		dto.Success(c, dto.ToPersonaRunResponse(run))
		return
	}

	runs, err := h.chat.ListScenarioPersonaRuns(ctx, userID, scenarioRunID)
	if err != nil {
		respondError(c, err, "failed to list persona runs")
		return
	}
	dto.Success(c, dto.ToPersonaRunListResponse(runs))
}
