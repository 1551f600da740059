package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"capmail/backend/internal/monitoring"
)

const (
	// RequestIDHeader 请求 ID 请求头
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// SecurityHeaders 添加安全响应头。响应中可能带有令牌或邮件内容，一律禁止缓存。
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		c.Next()
	}
}

// RequestID 沿用客户端传入的请求 ID，没有时生成新的
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger 记录每个请求。只记录路径不记录查询串，?token= 不会落入日志；
// 探活与指标抓取成功时不记录。
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		path := c.Request.URL.Path
		if status < 400 && isHealthRoute(path) {
			return
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIDKey)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.Error("request failed", fields...)
		case status >= 400:
			log.Info("request rejected", fields...)
		default:
			log.Debug("request served", fields...)
		}
	}
}

func isHealthRoute(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/health")
}

// RecoveryHandler 恢复 panic 的中间件
func RecoveryHandler(log *zap.Logger, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				metrics.RecordPanic()
				log.Error("panic recovered",
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
					zap.String("request_id", c.GetString(requestIDKey)),
					zap.Any("error", err),
					zap.Stack("stack"),
				)

				c.Abort()
				c.String(http.StatusInternalServerError, "Internal Server Error")
			}
		}()

		c.Next()
	}
}
