package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"capmail/backend/internal/domain"
)

// Claims 能力令牌的 JWT 声明
type Claims struct {
	Address   string `json:"address"`
	AddressID int64  `json:"address_id,omitempty"`
	jwt.RegisteredClaims
}

// Manager 签发与校验地址能力令牌。
//
// 令牌是无状态的，不存在吊销列表；轮换 secret 会使所有已签发令牌同时失效。
type Manager struct {
	secret []byte
	expiry time.Duration // 0 表示永不过期
	now    func() time.Time
}

// NewManager 创建令牌管理器
func NewManager(secret string, expiry time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

// Issue 为声明签发令牌
func (m *Manager) Issue(claim domain.Claim) (string, error) {
	now := m.now()

	claims := Claims{
		Address:   claim.Address,
		AddressID: claim.AddressID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if claims.AddressID < 0 {
		claims.AddressID = 0
	}
	if m.expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.expiry))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify 校验令牌并还原声明
func (m *Manager) Verify(tokenString string) (domain.Claim, error) {
	if tokenString == "" {
		return domain.Claim{}, domain.ErrTokenMissing
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Claim{}, domain.ErrTokenExpired
		}
		return domain.Claim{}, domain.ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Address == "" {
		return domain.Claim{}, domain.ErrTokenInvalid
	}

	return domain.Claim{
		Address:   claims.Address,
		AddressID: claims.AddressID,
	}, nil
}
