package httptransport

import (
	"context"
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"capmail/backend/internal/auth"
	"capmail/backend/internal/config"
	"capmail/backend/internal/health"
	"capmail/backend/internal/middleware"
	"capmail/backend/internal/monitoring"
	"capmail/backend/internal/service"
	"capmail/backend/internal/storage"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config           *config.Config
	Directory        *service.Directory
	MailboxService   *service.MailboxService
	AutoReplyService *service.AutoReplyService
	AdminService     *service.AdminService
	Tokens           middleware.TokenVerifier
	Cache            storage.Cache // 可选，用于按 IP 限流
	Health           *health.HealthChecker
	Metrics          *monitoring.Metrics
	Logger           *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.RecoveryHandler(deps.Logger, deps.Metrics))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	if deps.Metrics != nil {
		router.Use(middleware.HTTPMetrics(deps.Metrics))
	}
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	// CORS 配置
	origins := deps.Config.CORS.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsConfig := gincors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization", "X-Mailbox-Token",
			middleware.AdminHeader, middleware.AccessHeader,
		},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	access := auth.NewCredentialSet(deps.Config.Access.Passwords)

	publicHandler := NewPublicHandler(deps.Directory, access)
	mailboxHandler := NewMailboxHandler(deps.MailboxService, deps.Directory, deps.AutoReplyService)
	adminHandler := NewAdminHandler(deps.AdminService)

	mailboxAuth := middleware.NewMailboxAuth(deps.Tokens, deps.Directory, deps.Logger, deps.Metrics)
	adminAuth := middleware.NewAdminAuth(auth.NewCredentialSet(deps.Config.Admin.Passwords), deps.Logger)
	siteAccess := middleware.SiteAccess(access)
	throttle := middleware.Throttle(middleware.ThrottleConfig{
		Cache:     deps.Cache,
		PerIP:     deps.Config.RateLimit.PerIP,
		Window:    deps.Config.RateLimit.Window,
		GlobalRPS: deps.Config.RateLimit.GlobalRPS,
		Burst:     deps.Config.RateLimit.Burst,
		Logger:    deps.Logger,
		Metrics:   deps.Metrics,
	})

	// 健康检查与监控
	router.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		results, healthy := deps.Health.CheckHealth(ctx)
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, results)
	})
	if deps.Health != nil {
		router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// 公开配置，不校验站点口令
	router.GET("/open/settings", publicHandler.OpenSettings)
	router.GET("/open_api/settings", publicHandler.OpenSettings)

	// 用户接口，同时挂在根路径与 /api 下
	for _, prefix := range []string{"", "/api"} {
		user := router.Group(prefix, siteAccess)
		{
			user.GET("/new_address", throttle, publicHandler.NewAddress)

			user.GET("/settings", mailboxAuth.RequireToken(), mailboxHandler.GetSettings)
			user.POST("/settings", mailboxAuth.RequireToken(), mailboxHandler.SaveSettings)

			live := user.Group("", mailboxAuth.RequireToken(), mailboxAuth.RequireLiveAddress())
			live.GET("/mails", mailboxHandler.ListMails)
			live.GET("/attachment/:id", mailboxHandler.GetAttachment)
			live.DELETE("/delete_address", mailboxHandler.DeleteAddress)
		}
	}

	// 管理接口
	admin := router.Group("/admin", adminAuth.RequireAdmin())
	{
		admin.GET("/address", adminHandler.ListAddresses)
		admin.DELETE("/delete_address/:id", adminHandler.DeleteAddress)
		admin.GET("/show_password/:id", adminHandler.ShowPassword)
		admin.GET("/mails", adminHandler.ListMails)
		admin.GET("/mails_unknown", adminHandler.ListOrphanedMails)
		admin.GET("/mails_unknow", adminHandler.ListOrphanedMails)
		admin.GET("/statistics", adminHandler.Statistics)
	}

	return router
}
