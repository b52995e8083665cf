// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"

	"roleplay-coach-api/internal/interfaces/http/middleware"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h RouterHandlers) {
	read := middleware.RequirePermission(middleware.PermCatalogRead)
	write := middleware.RequirePermission(middleware.PermConversationWrite)

	// 角色与场景定义
	personas := v1.Group("/personas")
	{
		personas.GET("", read, h.Catalog.ListPersonas)
		personas.GET("/:pid", read, h.Catalog.GetPersona)
		personas.POST("", middleware.RequirePermission(middleware.PermCatalogWrite), h.Catalog.CreatePersona)
	}

	scenarios := v1.Group("/scenarios")
	{
		scenarios.GET("", read, h.Catalog.ListScenarios)
		scenarios.GET("/:sid", read, h.Catalog.GetScenario)
		scenarios.POST("", middleware.RequirePermission(middleware.PermCatalogWrite), h.Catalog.CreateScenario)
	}

	// 场景会话
	scenarioRuns := v1.Group("/scenario-runs", write)
	{
		scenarioRuns.POST("", h.ScenarioRun.CreateScenarioRun)
		scenarioRuns.GET("/:srid", h.ScenarioRun.GetScenarioRun)
		scenarioRuns.GET("/:srid/persona-runs", h.ScenarioRun.ListPersonaRuns)
	}

	// 角色会话
	personaRuns := v1.Group("/persona-runs", write)
	{
		personaRuns.POST("", h.PersonaRun.CreatePersonaRun)
		personaRuns.GET("/:rid", h.PersonaRun.GetPersonaRun)
		personaRuns.GET("/:rid/messages", h.PersonaRun.ListMessages)
		personaRuns.POST("/:rid/messages", h.PersonaRun.SendMessage)
		personaRuns.POST("/:rid/complete", h.PersonaRun.CompleteRun)
	}

	// 会话列表与反馈
	conversations := v1.Group("/conversations", write)
	{
		conversations.GET("/active", h.Conversation.ListActive)
		conversations.POST("/:cid/close", h.Conversation.Close)
		conversations.GET("/:cid/feedback", h.Conversation.GetFeedback)
		conversations.POST("/:cid/feedback", middleware.RequirePermission(middleware.PermFeedbackGenerate), h.Conversation.GenerateFeedback)
	}
}
