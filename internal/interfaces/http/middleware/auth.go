// Package middleware 提供 HTTP 中间件
package middleware

import (
	"errors"
	"net/http"
	"strings"

	apperrors "roleplay-coach-api/pkg/errors"
	"roleplay-coach-api/pkg/logger"
	"roleplay-coach-api/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AuthConfig 认证配置
type AuthConfig struct {
	// Secret JWT 密钥
	Secret string
	// Issuer JWT 签发者
	Issuer string
	// SkipPaths 跳过认证的路径
	SkipPaths []string
	// Enabled 是否启用认证
	Enabled bool
	// DevUserID 未启用认证时注入的用户，仅用于本地开发
	DevUserID string
}

// Auth 认证中间件
func Auth(cfg AuthConfig) gin.HandlerFunc {
	// 初始化 JWT 管理器
	jwtManager := utils.NewJWTManager(cfg.Secret, cfg.Issuer)

	// 构建跳过路径映射
	skipMap := make(map[string]bool)
	for _, path := range cfg.SkipPaths {
		skipMap[path] = true
	}

	return func(c *gin.Context) {
		// 如果未启用认证，使用开发用户放行
		if !cfg.Enabled {
			if cfg.DevUserID != "" {
				setUser(c, cfg.DevUserID, string(RoleMember))
			}
			c.Next()
			return
		}

		// 检查是否跳过路径
		if skipMap[c.Request.URL.Path] {
			c.Next()
			return
		}

		// 检查路径前缀匹配（支持 /health, /ready, /live, /metrics）
		for path := range skipMap {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}

		// 获取 Authorization Header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, apperrors.ErrTokenMissing)
			return
		}

		// 解析 Bearer Token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, apperrors.ErrTokenInvalid.WithDetail("invalid authorization format"))
			return
		}

		token := parts[1]

		// 使用 JWT 验证 Token
		claims, err := jwtManager.ParseToken(token)
		if err != nil {
			appErr := apperrors.ErrTokenInvalid
			if errors.Is(err, utils.ErrExpiredToken) {
				appErr = apperrors.ErrTokenExpired
			}
			abortUnauthorized(c, appErr)
			return
		}

		// 确保是 AccessToken
		if claims.Type != "access" {
			abortUnauthorized(c, apperrors.ErrTokenInvalid.WithDetail("not an access token"))
			return
		}

		if claims.UserID == "" {
			abortUnauthorized(c, apperrors.ErrTokenInvalid.WithDetail("token has no subject"))
			return
		}

		setUser(c, claims.UserID, claims.Role)
		c.Next()
	}
}

// setUser 注入用户信息到 Gin Context 与日志 Context
func setUser(c *gin.Context, userID, role string) {
	c.Set("user_id", userID)
	c.Set("role", role)
	ctx := logger.WithContext(c.Request.Context(), logger.UserIDKey, userID)
	c.Request = c.Request.WithContext(ctx)
}

// abortUnauthorized 终止请求并返回 401，error_code 区分过期、缺失与无效
func abortUnauthorized(c *gin.Context, appErr *apperrors.AppError) {
	msg := appErr.Message
	if appErr.Detail != "" {
		msg += ": " + appErr.Detail
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":     http.StatusUnauthorized,
		"message":  msg,
		"error":    gin.H{"error_code": string(appErr.Code)},
		"trace_id": c.GetString("trace_id"),
	})
}

// DefaultSkipPaths 默认跳过认证的路径
var DefaultSkipPaths = []string{
	"/health",
	"/ready",
	"/live",
	"/metrics",
}
