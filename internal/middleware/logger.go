package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// 探活和指标拉取不产生访问日志
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

func init() {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.MessageKey = "msg"

	var err error
	logger, err = config.Build()
	if err != nil {
		panic(err)
	}
}

// GetLogger 获取日志实例
func GetLogger() *zap.Logger {
	return logger
}

// Logger 访问日志中间件
// 为每个请求分配 request_id 并回写响应头；
// 认证中间件写入的 session_id / user_id 会一并带入日志
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if quietPaths[path] {
			return
		}

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if sessionID := c.GetString("session_id"); sessionID != "" {
			fields = append(fields, zap.String("session_id", sessionID))
		}
		if userID := c.GetString("user_id"); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
			logger.Error("HTTP 请求", fields...)
			return
		}

		logger.Info("HTTP 请求", fields...)
	}
}
