package service

import (
	"context"
	"errors"
	"fmt"

	"capmail/backend/internal/domain"
	"capmail/backend/internal/storage"
)

// AutoReplyService 管理每个地址的自动回复设置
type AutoReplyService struct {
	store     storage.AutoReplyRepository
	directory *Directory
}

// NewAutoReplyService 创建自动回复服务
func NewAutoReplyService(store storage.AutoReplyRepository, directory *Directory) *AutoReplyService {
	return &AutoReplyService{
		store:     store,
		directory: directory,
	}
}

// Settings 设置查询结果，Reply 为 nil 表示尚未配置
type Settings struct {
	Address string
	Reply   *domain.AutoReply
}

// Get 校验声明后返回自动回复设置，并刷新地址活跃时间
func (s *AutoReplyService) Get(ctx context.Context, claim domain.Claim) (*Settings, error) {
	addr, err := s.directory.ValidateClaim(ctx, claim)
	if err != nil {
		return nil, err
	}

	reply, err := s.store.GetAutoReply(ctx, addr.Address)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("get auto reply: %w", err)
	}

	s.directory.Touch(ctx, addr)
	return &Settings{Address: addr.Address, Reply: reply}, nil
}

// Set 整行替换自动回复设置
func (s *AutoReplyService) Set(ctx context.Context, claim domain.Claim, reply domain.AutoReply) error {
	if err := reply.Validate(); err != nil {
		return err
	}

	addr, err := s.directory.ValidateClaim(ctx, claim)
	if err != nil {
		return err
	}

	reply.Address = addr.Address
	if err := s.store.UpsertAutoReply(ctx, &reply); err != nil {
		return fmt.Errorf("save auto reply: %w", err)
	}
	return nil
}
