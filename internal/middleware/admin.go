package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"capmail/backend/internal/auth"
)

const (
	// AdminHeader 管理员口令请求头
	AdminHeader = "x-admin-auth"
	// AccessHeader 站点访问口令请求头
	AccessHeader = "x-custom-auth"
)

// AdminAuth 管理员口令中间件
type AdminAuth struct {
	credentials *auth.CredentialSet
	log         *zap.Logger
}

// NewAdminAuth 创建管理员口令中间件
func NewAdminAuth(credentials *auth.CredentialSet, log *zap.Logger) *AdminAuth {
	return &AdminAuth{
		credentials: credentials,
		log:         log,
	}
}

// RequireAdmin 要求管理员口令。未配置任何口令时管理接口全部关闭。
func (a *AdminAuth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.credentials.Empty() {
			c.Abort()
			c.String(http.StatusForbidden, "Admin access disabled")
			return
		}

		if !a.credentials.Match(c.GetHeader(AdminHeader)) {
			a.log.Warn("admin auth failed", zap.String("ip", c.ClientIP()))
			c.Abort()
			c.String(http.StatusUnauthorized, "Need admin password")
			return
		}

		c.Next()
	}
}

// SiteAccess 站点访问口令，未配置时直接放行
func SiteAccess(credentials *auth.CredentialSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		if credentials.Empty() {
			c.Next()
			return
		}

		if !credentials.Match(c.GetHeader(AccessHeader)) {
			c.Abort()
			c.String(http.StatusUnauthorized, "Need password")
			return
		}

		c.Next()
	}
}
