package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooLong bcrypt 只处理前 72 字节
var ErrPasswordTooLong = errors.New("password must be at most 72 bytes")

// CredentialSet 一组共享口令，用于站点访问门槛和管理员门槛。
//
// 条目以 "$2" 开头时按 bcrypt 哈希比较，否则按明文做常量时间比较。
type CredentialSet struct {
	entries []string
}

// NewCredentialSet 创建口令集合，空白条目会被忽略
func NewCredentialSet(entries []string) *CredentialSet {
	cleaned := make([]string, 0, len(entries))
	for _, e := range entries {
		if e = strings.TrimSpace(e); e != "" {
			cleaned = append(cleaned, e)
		}
	}
	return &CredentialSet{entries: cleaned}
}

// Empty 未配置任何口令
func (s *CredentialSet) Empty() bool {
	return s == nil || len(s.entries) == 0
}

// Match 检查提交的口令是否命中任意条目
func (s *CredentialSet) Match(candidate string) bool {
	if s.Empty() || candidate == "" {
		return false
	}
	matched := false
	for _, entry := range s.entries {
		if isBcryptHash(entry) {
			if CheckPassword(candidate, entry) {
				matched = true
			}
			continue
		}
		if subtle.ConstantTimeCompare([]byte(entry), []byte(candidate)) == 1 {
			matched = true
		}
	}
	return matched
}

func isBcryptHash(entry string) bool {
	return strings.HasPrefix(entry, "$2")
}

// HashPassword 哈希口令
func HashPassword(password string) (string, error) {
	if len(password) > 72 {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword 检查口令是否匹配哈希
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
