// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"roleplay-coach-api/internal/infrastructure/messaging"
	"roleplay-coach-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuditPublisher 审计日志投递，由 messaging.Producer 实现
type AuditPublisher interface {
	PublishAuditLog(ctx context.Context, log *messaging.AuditLogMessage) (string, error)
}

// AuditConfig 审计配置
type AuditConfig struct {
	Enabled   bool
	SkipPaths []string
	Publisher AuditPublisher
}

// AuditWithConfig 请求结束后写审计日志；配置了 Publisher 时写操作同时投递到审计流
func AuditWithConfig(cfg AuditConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		logger.Info(c.Request.Context(), "api audit",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
			"user_id", c.GetString("user_id"),
			"request_id", c.GetString("request_id"),
		)

		if cfg.Publisher != nil && isWrite(c.Request.Method) {
			publishAudit(c, cfg.Publisher)
		}
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// publishAudit 投递失败只记日志，不影响响应
func publishAudit(c *gin.Context, pub AuditPublisher) {
	ctx := c.Request.Context()
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	_, err := pub.PublishAuditLog(ctx, &messaging.AuditLogMessage{
		UserID:       c.GetString("user_id"),
		Action:       c.Request.Method + " " + route,
		ResourceType: auditResourceType(route),
		ResourceID:   firstParam(c),
		RequestID:    c.GetString("request_id"),
		TraceID:      c.GetString("trace_id"),
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
		StatusCode:   c.Writer.Status(),
	})
	if err != nil {
		logger.Warn(ctx, "publish audit log failed", "error", err.Error())
	}
}

// auditResourceType 取 /v1/<resource>/... 中的资源段
func auditResourceType(route string) string {
	parts := strings.Split(strings.Trim(route, "/"), "/")
	if len(parts) >= 2 && parts[0] == "v1" {
		return parts[1]
	}
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

func firstParam(c *gin.Context) string {
	if len(c.Params) == 0 {
		return ""
	}
	return c.Params[0].Value
}

// DefaultAuditSkipPaths 默认跳过审计的路径
var DefaultAuditSkipPaths = []string{
	"/health",
	"/ready",
	"/live",
	"/metrics",
}
