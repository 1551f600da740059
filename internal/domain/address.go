package domain

import (
	"regexp"
	"strings"
	"time"
)

// Address 地址目录中的一行，Name 为不带展示前缀的 "本地部分@域名"。
type Address struct {
	ID        int64     `json:"id" db:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" db:"name" gorm:"type:varchar(255);uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" gorm:"index;not null"`
}

// TableName 指定表名
func (Address) TableName() string {
	return "address"
}

// AddressPolicy 判断一个展示地址是否由本系统托管，以及展示名与目录名之间的换算。
type AddressPolicy interface {
	// IsManaged 展示地址是否遵循托管前缀约定
	IsManaged(display string) bool
	// BareName 去掉展示前缀，得到目录中的名字
	BareName(display string) string
	// Display 为目录名加上展示前缀
	Display(name string) string
	// Prefix 返回展示前缀
	Prefix() string
}

// PrefixPolicy 基于固定前缀的地址策略。空前缀时所有地址都视为托管地址。
type PrefixPolicy struct {
	prefix string
}

// NewPrefixPolicy 创建前缀策略
func NewPrefixPolicy(prefix string) PrefixPolicy {
	return PrefixPolicy{prefix: prefix}
}

func (p PrefixPolicy) IsManaged(display string) bool {
	return strings.HasPrefix(display, p.prefix)
}

func (p PrefixPolicy) BareName(display string) string {
	return strings.TrimPrefix(display, p.prefix)
}

func (p PrefixPolicy) Display(name string) string {
	return p.prefix + name
}

func (p PrefixPolicy) Prefix() string {
	return p.prefix
}

const (
	// MaxLocalPartLength 本地部分最大长度(@前面)
	MaxLocalPartLength = 64
)

var localPartRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9._-]*[a-z0-9])?$`)

// NormalizeLocalPart 将用户请求的本地部分转为小写并校验格式
func NormalizeLocalPart(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || len(name) > MaxLocalPartLength {
		return "", ErrInvalidName
	}
	if !localPartRegex.MatchString(name) {
		return "", ErrInvalidName
	}
	return name, nil
}
