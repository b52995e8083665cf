// Package router 提供 HTTP 路由配置
package router

import (
	"roleplay-coach-api/internal/config"
	"roleplay-coach-api/internal/interfaces/http/handler"
	"roleplay-coach-api/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterHandlers 路由依赖的全部处理器
type RouterHandlers struct {
	Health       *handler.HealthHandler
	Catalog      *handler.CatalogHandler
	PersonaRun   *handler.PersonaRunHandler
	ScenarioRun  *handler.ScenarioRunHandler
	Conversation *handler.ConversationHandler
}

// RouterDeps 中间件依赖，均可为空
type RouterDeps struct {
	Auth        middleware.AuthConfig
	RateLimiter middleware.RateLimiter
	Audit       middleware.AuditPublisher
}

// Router HTTP 路由器
type Router struct {
	engine *gin.Engine
	cfg    *config.Config
	deps   RouterDeps
}

// NewWithDeps 创建带业务路由的路由器
func NewWithDeps(cfg *config.Config, handlers RouterHandlers, deps RouterDeps) *Router {
	// 设置 Gin 模式
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine: gin.New(),
		cfg:    cfg,
		deps:   deps,
	}

	r.setupMiddleware()
	r.setupSystemRoutes(handlers.Health)

	v1 := r.engine.Group("/v1")
	v1.Use(r.apiMiddleware()...)
	RegisterV1Routes(v1, handlers)

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置全局中间件
func (r *Router) setupMiddleware() {
	// 基础中间件
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	// CORS 中间件
	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	// 追踪中间件
	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	// 指标中间件
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

// apiMiddleware /v1 下的认证、限流与审计
func (r *Router) apiMiddleware() []gin.HandlerFunc {
	rl := r.cfg.Security.RateLimit
	return []gin.HandlerFunc{
		middleware.Auth(r.deps.Auth),
		middleware.RateLimit(middleware.RateLimitConfig{
			Enabled:           rl.Enabled,
			RequestsPerSecond: rl.RequestsPerSecond,
			Burst:             rl.Burst,
			KeyPrefix:         "ratelimit:api",
		}, r.deps.RateLimiter),
		middleware.AuditWithConfig(middleware.AuditConfig{
			Enabled:   true,
			SkipPaths: middleware.DefaultAuditSkipPaths,
			Publisher: r.deps.Audit,
		}),
	}
}

// setupSystemRoutes 健康检查与指标端点，不经过认证
func (r *Router) setupSystemRoutes(health *handler.HealthHandler) {
	r.engine.GET("/health", health.Health)
	r.engine.GET("/ready", health.Ready)
	r.engine.GET("/live", health.Live)

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		path := r.cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, gin.WrapH(promhttp.Handler()))
	}
}
