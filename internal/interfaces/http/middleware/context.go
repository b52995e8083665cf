// Package middleware 提供 HTTP 中间件
package middleware

import (
	"github.com/gin-gonic/gin"
)

// GetUserIDFromGin 从 Gin Context 中获取用户 ID
func GetUserIDFromGin(c *gin.Context) string {
	return c.GetString("user_id")
}

// GetRoleFromGin 从 Gin Context 中获取角色
func GetRoleFromGin(c *gin.Context) string {
	return c.GetString("role")
}
