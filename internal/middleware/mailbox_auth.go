package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"capmail/backend/internal/domain"
	"capmail/backend/internal/monitoring"
)

const (
	claimKey   = "claim"
	addressKey = "address"
)

// TokenVerifier 校验能力令牌
type TokenVerifier interface {
	Verify(token string) (domain.Claim, error)
}

// ClaimValidator 将声明与地址目录对账
type ClaimValidator interface {
	ValidateClaim(ctx context.Context, claim domain.Claim) (domain.ValidatedAddress, error)
}

// MailboxAuth 地址能力令牌认证中间件
type MailboxAuth struct {
	tokens    TokenVerifier
	directory ClaimValidator
	log       *zap.Logger
	metrics   *monitoring.Metrics
}

// NewMailboxAuth 创建地址认证中间件
func NewMailboxAuth(tokens TokenVerifier, directory ClaimValidator, log *zap.Logger, metrics *monitoring.Metrics) *MailboxAuth {
	return &MailboxAuth{
		tokens:    tokens,
		directory: directory,
		log:       log,
		metrics:   metrics,
	}
}

// RequireToken 要求有效令牌，声明存入上下文。只校验签名，不查询目录。
func (ma *MailboxAuth) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		claim, err := ma.tokens.Verify(extractToken(c))
		if err != nil {
			ma.metrics.RecordTokenRejected(rejectReason(err))
			ma.log.Debug("token rejected",
				zap.String("ip", c.ClientIP()),
				zap.Error(err),
			)
			AbortWithError(c, err, "Invalid token")
			return
		}

		c.Set(claimKey, claim)
		c.Next()
	}
}

// RequireLiveAddress 在 RequireToken 之后使用，要求声明对应的地址仍然有效
func (ma *MailboxAuth) RequireLiveAddress() gin.HandlerFunc {
	return func(c *gin.Context) {
		claim, ok := GetClaim(c)
		if !ok {
			AbortWithError(c, domain.ErrTokenMissing, "No token")
			return
		}

		addr, err := ma.directory.ValidateClaim(c.Request.Context(), claim)
		if err != nil {
			AbortWithError(c, err, "Failed to validate address")
			return
		}

		c.Set(addressKey, addr)
		c.Next()
	}
}

// GetClaim 读取 RequireToken 存入的声明
func GetClaim(c *gin.Context) (domain.Claim, bool) {
	v, ok := c.Get(claimKey)
	if !ok {
		return domain.Claim{}, false
	}
	claim, ok := v.(domain.Claim)
	return claim, ok
}

// GetAddress 读取 RequireLiveAddress 存入的地址
func GetAddress(c *gin.Context) (domain.ValidatedAddress, bool) {
	v, ok := c.Get(addressKey)
	if !ok {
		return domain.ValidatedAddress{}, false
	}
	addr, ok := v.(domain.ValidatedAddress)
	return addr, ok
}

// extractToken 从多个来源提取Token
func extractToken(c *gin.Context) string {
	// 1. Authorization: Bearer <token>
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// 2. X-Mailbox-Token
	if token := c.GetHeader("X-Mailbox-Token"); token != "" {
		return token
	}

	// 3. ?token=，用于附件直链
	return c.Query("token")
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenMissing):
		return "missing"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	default:
		return "invalid"
	}
}
