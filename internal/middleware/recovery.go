package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sxedu-cn/perm-backend/pkg/response"
	"go.uber.org/zap"
)

// Recovery 恢复中间件
// 捕获 panic，记录日志，返回友好错误
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("服务器内部错误",
					zap.String("request_id", c.GetString("request_id")),
					zap.String("session_id", c.GetString("session_id")),
					zap.String("user_id", c.GetString("user_id")),
					zap.Any("error", r),
					zap.String("stack", string(debug.Stack())),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
					zap.String("ip", c.ClientIP()),
				)

				// 返回错误响应
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
					Code: response.CodeServerError,
					Msg:  "服务器内部错误，请稍后重试",
					Data: nil,
				})
			}
		}()
		c.Next()
	}
}
