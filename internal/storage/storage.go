package storage

import (
	"context"
	"errors"
	"time"

	"capmail/backend/internal/domain"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 违反唯一约束
	ErrDuplicate = errors.New("duplicate record")
)

// AddressFilter 地址列表过滤条件。
//
// Query 非空时按展示名 (Prefix + name) 做不区分大小写的子串匹配，
// Prefix 作为绑定参数参与查询，不拼接进 SQL 文本。
type AddressFilter struct {
	Prefix string
	Query  string
}

// AddressRepository 定义地址目录的存取操作。
type AddressRepository interface {
	// CreateAddress 插入新地址，名字冲突时返回 ErrDuplicate
	CreateAddress(ctx context.Context, name string, now time.Time) error
	GetAddressByID(ctx context.Context, id int64) (*domain.Address, error)
	GetAddressByName(ctx context.Context, name string) (*domain.Address, error)
	TouchAddress(ctx context.Context, name string, at time.Time) error
	ListAddresses(ctx context.Context, filter AddressFilter, page domain.Page) ([]domain.Address, error)
	CountAddresses(ctx context.Context, filter AddressFilter) (int64, error)
	CountActiveAddresses(ctx context.Context, since time.Time) (int64, error)
}

// MailRepository 定义邮件与附件的存取操作。
//
// SaveMail 和 SaveAttachment 供外部投递流程和测试使用，HTTP 接口不会写入邮件。
type MailRepository interface {
	SaveMail(ctx context.Context, mail *domain.Mail) error
	SaveAttachment(ctx context.Context, attachment *domain.Attachment) error

	// ListMails 按 id 倒序返回某个地址的一页邮件
	ListMails(ctx context.Context, address string, page domain.Page) ([]domain.Mail, error)
	CountMails(ctx context.Context, address string) (int64, error)
	// ListOrphanedMails 返回收件地址在目录中没有对应行的邮件
	ListOrphanedMails(ctx context.Context, prefix string, page domain.Page) ([]domain.Mail, error)
	CountOrphanedMails(ctx context.Context, prefix string) (int64, error)
	CountAllMails(ctx context.Context) (int64, error)
	DeleteMailsByAddress(ctx context.Context, address string) (int64, error)

	// ListAttachmentRefs 一次查询取回给定 message_id 的全部附件，按附件 id 排序
	ListAttachmentRefs(ctx context.Context, messageIDs []string) ([]domain.AttachmentRef, error)
	// GetAttachmentData 读取属于 address 的邮件上的附件内容
	GetAttachmentData(ctx context.Context, address, id string) (string, error)
}

// AutoReplyRepository 定义自动回复设置的存取操作。
type AutoReplyRepository interface {
	GetAutoReply(ctx context.Context, address string) (*domain.AutoReply, error)
	// UpsertAutoReply 整行替换
	UpsertAutoReply(ctx context.Context, reply *domain.AutoReply) error
}

// Store 聚合所有存储接口。
type Store interface {
	AddressRepository
	MailRepository
	AutoReplyRepository

	// DeleteAddressCascade 在同一事务中删除 address 名下的邮件和 id 对应的地址行，
	// 返回删除的邮件数。地址行已不存在时只删除邮件。
	DeleteAddressCascade(ctx context.Context, id int64, address string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Cache 可选的键值缓存与计数器，用于统计缓存和限流。
type Cache interface {
	// Get 读取 JSON 编码的值，未命中返回 ErrNotFound
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Incr 在窗口内自增计数，首次自增时设置过期时间
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}
