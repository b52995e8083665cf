// Package middleware 提供 HTTP 中间件
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Role 用户角色，来自 JWT 的 role 声明
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Permission 权限类型
type Permission string

// 权限常量定义
const (
	PermCatalogRead       Permission = "catalog:read"
	PermCatalogWrite      Permission = "catalog:write"
	PermConversationWrite Permission = "conversation:write"
	PermFeedbackGenerate  Permission = "feedback:generate"
	PermAdminAccess       Permission = "admin:access"
)

// rolePermissions 角色-权限映射表
var rolePermissions = map[Role][]Permission{
	RoleAdmin:  {PermCatalogRead, PermCatalogWrite, PermConversationWrite, PermFeedbackGenerate, PermAdminAccess},
	RoleMember: {PermCatalogRead, PermConversationWrite, PermFeedbackGenerate},
	RoleViewer: {PermCatalogRead},
}

// HasPermission 检查角色是否具有指定权限
func HasPermission(role Role, perm Permission) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// RequirePermission 权限检查中间件
// 检查当前用户是否具有指定权限，否则返回 403
func RequirePermission(perm Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleStr := c.GetString("role")
		if roleStr == "" {
			abortForbidden(c, "missing role in context")
			return
		}

		role := Role(roleStr)
		if !HasPermission(role, perm) {
			abortForbidden(c, "permission denied")
			return
		}

		c.Next()
	}
}

// abortForbidden 终止请求并返回 403
func abortForbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"code":     403,
		"message":  msg,
		"trace_id": c.GetString("trace_id"),
	})
}
