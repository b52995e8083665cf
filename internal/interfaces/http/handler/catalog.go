package handler

import (
	"github.com/gin-gonic/gin"

	"roleplay-coach-api/internal/domain/repository"
	"roleplay-coach-api/internal/interfaces/http/dto"
	"roleplay-coach-api/pkg/logger"
)

// CatalogHandler 角色与场景定义
type CatalogHandler struct {
	personaRepo  repository.PersonaRepository
	scenarioRepo repository.ScenarioRepository
}

func NewCatalogHandler(personaRepo repository.PersonaRepository, scenarioRepo repository.ScenarioRepository) *CatalogHandler {
	return &CatalogHandler{personaRepo: personaRepo, scenarioRepo: scenarioRepo}
}

// ListPersonas 角色列表
// @Summary 角色列表
// @Tags Catalog
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[dto.PersonaListResponse]
// @Router /v1/personas [get]
func (h *CatalogHandler) ListPersonas(c *gin.Context) {
	ctx := c.Request.Context()
	pageReq := dto.BindPage(c)

	result, err := h.personaRepo.List(ctx, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list personas", err)
		dto.InternalError(c, "failed to list personas")
		return
	}

	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, dto.ToPersonaListResponse(result.Items), meta)
}

// GetPersona 角色详情
// @Summary 角色详情
// @Tags Catalog
// @Produce json
// @Param pid path string true "角色 ID"
// @Success 200 {object} dto.Response[dto.PersonaResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/personas/{pid} [get]
func (h *CatalogHandler) GetPersona(c *gin.Context) {
	ctx := c.Request.Context()

	persona, err := h.personaRepo.GetByID(ctx, dto.BindPersonaID(c))
	if err != nil {
		logger.Error(ctx, "failed to get persona", err)
		dto.InternalError(c, "failed to get persona")
		return
	}
	if persona == nil {
		dto.NotFound(c, "persona not found")
		return
	}
	dto.Success(c, dto.ToPersonaResponse(persona))
}

// CreatePersona 创建角色
// @Summary 创建角色
// @Tags Catalog
// @Accept json
// @Produce json
// @Param body body dto.CreatePersonaRequest true "角色定义"
// @Success 201 {object} dto.Response[dto.PersonaResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /v1/personas [post]
func (h *CatalogHandler) CreatePersona(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreatePersonaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	persona := req.ToPersonaEntity()
	if err := h.personaRepo.Create(ctx, persona); err != nil {
		logger.Error(ctx, "failed to create persona", err)
		dto.InternalError(c, "failed to create persona")
		return
	}
	dto.Created(c, dto.ToPersonaResponse(persona))
}

// ListScenarios 场景列表
// @Summary 场景列表
// @Tags Catalog
// @Produce json
// @Success 200 {object} dto.Response[dto.ScenarioListResponse]
// @Router /v1/scenarios [get]
func (h *CatalogHandler) ListScenarios(c *gin.Context) {
	ctx := c.Request.Context()
	pageReq := dto.BindPage(c)

	result, err := h.scenarioRepo.List(ctx, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list scenarios", err)
		dto.InternalError(c, "failed to list scenarios")
		return
	}

	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, dto.ToScenarioListResponse(result.Items), meta)
}

// GetScenario 场景详情
// @Summary 场景详情
// @Tags Catalog
// @Produce json
// @Param sid path string true "场景 ID"
// @Success 200 {object} dto.Response[dto.ScenarioResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/scenarios/{sid} [get]
func (h *CatalogHandler) GetScenario(c *gin.Context) {
	ctx := c.Request.Context()

	scenario, err := h.scenarioRepo.GetByID(ctx, dto.BindScenarioID(c))
	if err != nil {
		logger.Error(ctx, "failed to get scenario", err)
		dto.InternalError(c, "failed to get scenario")
		return
	}
	if scenario == nil {
		dto.NotFound(c, "scenario not found")
		return
	}
	dto.Success(c, dto.ToScenarioResponse(scenario))
}

// CreateScenario 创建场景
// @Summary 创建场景
// @Description persona_ids 中的角色必须已存在
// @Tags Catalog
// @Accept json
// @Produce json
// @Param body body dto.CreateScenarioRequest true "场景定义"
// @Success 201 {object} dto.Response[dto.ScenarioResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /v1/scenarios [post]
func (h *CatalogHandler) CreateScenario(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	seen := make(map[string]struct{}, len(req.PersonaIDs))
	for _, id := range req.PersonaIDs {
		if _, dup := seen[id]; dup {
			dto.BadRequest(c, "duplicate persona id: "+id)
			return
		}
		seen[id] = struct{}{}

		persona, err := h.personaRepo.GetByID(ctx, id)
		if err != nil {
			logger.Error(ctx, "failed to check persona", err)
			dto.InternalError(c, "failed to create scenario")
			return
		}
		if persona == nil {
			dto.BadRequest(c, "unknown persona id: "+id)
			return
		}
	}

	scenario := req.ToScenarioEntity()
	if err := h.scenarioRepo.Create(ctx, scenario); err != nil {
		logger.Error(ctx, "failed to create scenario", err)
		dto.InternalError(c, "failed to create scenario")
		return
	}
	dto.Created(c, dto.ToScenarioResponse(scenario))
}
