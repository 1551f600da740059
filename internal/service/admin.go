package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"capmail/backend/internal/domain"
	"capmail/backend/internal/monitoring"
	"capmail/backend/internal/storage"
)

const statisticsCacheKey = "admin:statistics"

// AdminService 管理服务，不做归属校验，访问控制由管理员口令中间件负责
type AdminService struct {
	store     storage.Store
	directory *Directory
	mailbox   *MailboxService
	cache     storage.Cache // 可选，为 nil 时不缓存统计
	cacheTTL  time.Duration
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	now       func() time.Time
}

// AdminOption 管理服务可选配置
type AdminOption func(*AdminService)

// WithStatisticsCache 使用缓存保存统计结果
func WithStatisticsCache(cache storage.Cache, ttl time.Duration) AdminOption {
	return func(s *AdminService) {
		if cache != nil && ttl > 0 {
			s.cache = cache
			s.cacheTTL = ttl
		}
	}
}

// NewAdminService 创建管理服务
func NewAdminService(store storage.Store, directory *Directory, mailbox *MailboxService, logger *zap.Logger, metrics *monitoring.Metrics, opts ...AdminOption) *AdminService {
	s := &AdminService{
		store:     store,
		directory: directory,
		mailbox:   mailbox,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchAddresses 列出地址，query 非空时按展示名做子串匹配。返回的 Name 为展示名。
func (s *AdminService) SearchAddresses(ctx context.Context, query string, page domain.Page) (*domain.AddressPage, error) {
	policy := s.directory.Policy()
	filter := storage.AddressFilter{
		Prefix: policy.Prefix(),
		Query:  strings.TrimSpace(query),
	}

	addresses, err := s.store.ListAddresses(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}

	var count int64
	if page.WantsCount() {
		if count, err = s.store.CountAddresses(ctx, filter); err != nil {
			return nil, fmt.Errorf("count addresses: %w", err)
		}
	}

	for i := range addresses {
		addresses[i].Name = policy.Display(addresses[i].Name)
	}
	return &domain.AddressPage{Results: addresses, Count: count}, nil
}

// ListMailFor 列出任意地址的邮件
func (s *AdminService) ListMailFor(ctx context.Context, address string, page domain.Page) (*domain.MailPage, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, domain.ErrInvalidAddress
	}
	return s.mailbox.ListMail(ctx, address, page)
}

// ListOrphanedMail 列出收件地址在目录中不存在的邮件
func (s *AdminService) ListOrphanedMail(ctx context.Context, page domain.Page) (*domain.MailPage, error) {
	prefix := s.directory.Policy().Prefix()

	mails, err := s.store.ListOrphanedMails(ctx, prefix, page)
	if err != nil {
		return nil, fmt.Errorf("list orphaned mails: %w", err)
	}

	var count int64
	if page.WantsCount() {
		if count, err = s.store.CountOrphanedMails(ctx, prefix); err != nil {
			return nil, fmt.Errorf("count orphaned mails: %w", err)
		}
	}

	results, err := s.mailbox.summarize(ctx, mails)
	if err != nil {
		return nil, err
	}
	return &domain.MailPage{Results: results, Count: count}, nil
}

// Statistics 返回邮件总数、地址总数与 7 天内活跃地址数
func (s *AdminService) Statistics(ctx context.Context) (*domain.Statistics, error) {
	if s.cache != nil {
		var cached domain.Statistics
		err := s.cache.Get(ctx, statisticsCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to read statistics cache", zap.Error(err))
		}
	}

	mailCount, err := s.store.CountAllMails(ctx)
	if err != nil {
		return nil, fmt.Errorf("count mails: %w", err)
	}
	addressCount, err := s.store.CountAddresses(ctx, storage.AddressFilter{})
	if err != nil {
		return nil, fmt.Errorf("count addresses: %w", err)
	}
	active, err := s.store.CountActiveAddresses(ctx, s.now().UTC().Add(-domain.ActiveWindow))
	if err != nil {
		return nil, fmt.Errorf("count active addresses: %w", err)
	}

	stats := &domain.Statistics{
		MailCount:          mailCount,
		AddressCount:       addressCount,
		ActiveAddressCount: active,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, statisticsCacheKey, stats, s.cacheTTL); err != nil {
			s.logger.Warn("failed to write statistics cache", zap.Error(err))
		}
	}
	return stats, nil
}

// DeleteAddress 删除地址行及其当前展示名下的全部邮件
func (s *AdminService) DeleteAddress(ctx context.Context, id int64) error {
	addr, err := s.getAddress(ctx, id)
	if err != nil {
		return err
	}

	display := s.directory.Policy().Display(addr.Name)
	deleted, err := s.store.DeleteAddressCascade(ctx, id, display)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}

	s.metrics.RecordAddressDeleted("admin", deleted)
	s.logger.Info("address deleted by admin",
		zap.Int64("address_id", id),
		zap.String("address", display),
		zap.Int64("mails", deleted),
	)
	return nil
}

// ReissueToken 为已存在的地址重新签发令牌
func (s *AdminService) ReissueToken(ctx context.Context, id int64) (string, error) {
	addr, err := s.getAddress(ctx, id)
	if err != nil {
		return "", err
	}

	token, err := s.directory.tokens.Issue(domain.Claim{
		Address:   s.directory.Policy().Display(addr.Name),
		AddressID: addr.ID,
	})
	if err != nil {
		return "", err
	}

	s.metrics.RecordTokenReissued()
	return token, nil
}

func (s *AdminService) getAddress(ctx context.Context, id int64) (*domain.Address, error) {
	if id <= 0 {
		return nil, domain.ErrAddressNotFound
	}
	addr, err := s.store.GetAddressByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrAddressNotFound
		}
		return nil, fmt.Errorf("get address: %w", err)
	}
	return addr, nil
}
