package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"capmail/backend/internal/domain"
	"capmail/backend/internal/monitoring"
	"capmail/backend/internal/storage"
)

// MailboxService 封装邮件查询相关业务操作。
type MailboxService struct {
	store   storage.MailRepository
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewMailboxService 创建邮件查询服务。
func NewMailboxService(store storage.MailRepository, logger *zap.Logger, metrics *monitoring.Metrics) *MailboxService {
	return &MailboxService{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// ListMail 按 id 倒序返回某个地址的一页邮件。
//
// 只有 offset 为 0 时计算总数，其余页 count 固定为 0，调用方应沿用第一页的值。
func (s *MailboxService) ListMail(ctx context.Context, address string, page domain.Page) (*domain.MailPage, error) {
	mails, err := s.store.ListMails(ctx, address, page)
	if err != nil {
		return nil, fmt.Errorf("list mails: %w", err)
	}

	var count int64
	if page.WantsCount() {
		if count, err = s.store.CountMails(ctx, address); err != nil {
			return nil, fmt.Errorf("count mails: %w", err)
		}
	}

	results, err := s.summarize(ctx, mails)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordMailPage()
	return &domain.MailPage{Results: results, Count: count}, nil
}

// GetAttachment 读取属于 address 的附件内容
func (s *MailboxService) GetAttachment(ctx context.Context, address, id string) (string, error) {
	if id == "" {
		return "", domain.ErrAttachmentNotFound
	}

	data, err := s.store.GetAttachmentData(ctx, address, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", domain.ErrAttachmentNotFound
		}
		return "", fmt.Errorf("get attachment: %w", err)
	}
	if data == "" {
		return "", domain.ErrAttachmentNotFound
	}

	s.metrics.RecordAttachmentServed()
	return data, nil
}

// summarize 一次批量查询为整页邮件补充附件 ID，每封邮件最多一个
func (s *MailboxService) summarize(ctx context.Context, mails []domain.Mail) ([]domain.MailSummary, error) {
	seen := make(map[string]struct{}, len(mails))
	messageIDs := make([]string, 0, len(mails))
	for _, m := range mails {
		if m.MessageID == nil || *m.MessageID == "" {
			continue
		}
		if _, ok := seen[*m.MessageID]; ok {
			continue
		}
		seen[*m.MessageID] = struct{}{}
		messageIDs = append(messageIDs, *m.MessageID)
	}

	var first map[string]string
	if len(messageIDs) > 0 {
		refs, err := s.store.ListAttachmentRefs(ctx, messageIDs)
		if err != nil {
			return nil, fmt.Errorf("list attachments: %w", err)
		}
		first = domain.FirstAttachments(refs)
	}

	results := make([]domain.MailSummary, 0, len(mails))
	for _, m := range mails {
		var attachmentID string
		if m.MessageID != nil {
			attachmentID = first[*m.MessageID]
		}
		results = append(results, m.Summarize(attachmentID))
	}
	return results, nil
}
