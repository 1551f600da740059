package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"capmail/backend/internal/monitoring"
	"capmail/backend/internal/storage"
)

// ThrottleConfig 创建地址限流配置
type ThrottleConfig struct {
	Cache     storage.Cache // 按 IP 计数，为 nil 时关闭 IP 限流
	PerIP     int
	Window    time.Duration
	GlobalRPS float64 // 为 0 时关闭全局限流
	Burst     int
	Logger    *zap.Logger
	Metrics   *monitoring.Metrics
}

// Throttle 创建地址限流：全局令牌桶加按 IP 的固定窗口计数
func Throttle(cfg ThrottleConfig) gin.HandlerFunc {
	var limiter *rate.Limiter
	if cfg.GlobalRPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.GlobalRPS), burst)
	}
	perIP := cfg.Cache != nil && cfg.PerIP > 0 && cfg.Window > 0

	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow() {
			cfg.Metrics.RecordRateLimitBlock("global")
			c.Abort()
			c.String(http.StatusTooManyRequests, "Too many requests")
			return
		}

		if perIP {
			count, err := cfg.Cache.Incr(c.Request.Context(), "throttle:new_address:"+c.ClientIP(), cfg.Window)
			if err != nil {
				// 计数失败时放行
				cfg.Logger.Warn("throttle counter unavailable", zap.Error(err))
			} else if count > int64(cfg.PerIP) {
				cfg.Metrics.RecordRateLimitBlock("ip")
				c.Abort()
				c.String(http.StatusTooManyRequests, "Too many requests")
				return
			}
		}

		c.Next()
	}
}
