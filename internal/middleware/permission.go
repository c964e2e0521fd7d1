// Package middleware 中间件
package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sxedu-cn/perm-backend/internal/model"
	"github.com/sxedu-cn/perm-backend/internal/repository"
	"github.com/sxedu-cn/perm-backend/internal/service"
	"github.com/sxedu-cn/perm-backend/pkg/response"
)

// RequirePermission 权限检查中间件
// 未知用户或任何解析失败一律拒绝
func RequirePermission(checkService service.CheckService, resource string, action model.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			response.Error(c, response.CodeInvalidToken)
			c.Abort()
			return
		}
		sessionID := c.GetString("session_id")

		decision, err := checkService.Check(c.Request.Context(), sessionID, userID.(string), service.CheckRequest{
			Resource: resource,
			Action:   action,
		})
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				response.Error(c, response.CodeUserNotFound)
			} else {
				response.Error(c, response.CodeServerError)
			}
			c.Abort()
			return
		}

		if !decision.Allowed {
			response.ErrorWithMsg(c, response.CodeForbidden, "没有权限执行此操作")
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireRole 角色检查中间件
// 只看直接分配的角色，不含继承
func RequireRole(userRoleRepo repository.UserRoleRepository, roleCode string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			response.Error(c, response.CodeInvalidToken)
			c.Abort()
			return
		}

		hasRole, err := userRoleRepo.HasRole(c.Request.Context(), userID.(string), roleCode)
		if err != nil {
			response.Error(c, response.CodeServerError)
			c.Abort()
			return
		}

		if !hasRole {
			response.ErrorWithMsg(c, response.CodeForbidden, "没有权限执行此操作")
			c.Abort()
			return
		}

		c.Next()
	}
}
