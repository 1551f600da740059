package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"capmail/backend/internal/domain"
	"capmail/backend/internal/storage"
)

// Store 使用内存保存地址、邮件与自动回复数据，主要用于开发验证和测试。
type Store struct {
	mu          sync.RWMutex
	addresses   map[int64]*domain.Address
	byName      map[string]int64
	mails       []*domain.Mail // 按 id 升序
	attachments map[string]*domain.Attachment
	autoReplies map[string]domain.AutoReply

	nextAddressID int64
	nextMailID    int64
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		addresses:   make(map[int64]*domain.Address),
		byName:      make(map[string]int64),
		attachments: make(map[string]*domain.Attachment),
		autoReplies: make(map[string]domain.AutoReply),
	}
}

// ========== 地址目录 ==========

// CreateAddress 插入新地址
func (s *Store) CreateAddress(ctx context.Context, name string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[name]; exists {
		return storage.ErrDuplicate
	}

	s.nextAddressID++
	s.addresses[s.nextAddressID] = &domain.Address{
		ID:        s.nextAddressID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byName[name] = s.nextAddressID
	return nil
}

// GetAddressByID 根据 ID 获取地址
func (s *Store) GetAddressByID(ctx context.Context, id int64) (*domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addr, ok := s.addresses[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *addr
	return &clone, nil
}

// GetAddressByName 根据目录名获取地址
func (s *Store) GetAddressByName(ctx context.Context, name string) (*domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *s.addresses[id]
	return &clone, nil
}

// TouchAddress 刷新 updated_at
func (s *Store) TouchAddress(ctx context.Context, name string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byName[name]; ok {
		s.addresses[id].UpdatedAt = at
	}
	return nil
}

// DeleteAddressCascade 持锁删除 address 名下的邮件和地址行，地址行不存在时不报错
func (s *Store) DeleteAddressCascade(ctx context.Context, id int64, address string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := s.deleteMailsLocked(address)
	if addr, ok := s.addresses[id]; ok {
		delete(s.byName, addr.Name)
		delete(s.addresses, id)
	}
	return deleted, nil
}

// ListAddresses 按 id 倒序分页
func (s *Store) ListAddresses(ctx context.Context, filter storage.AddressFilter, page domain.Page) ([]domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.filterAddressesLocked(filter)
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	return paginate(matched, page), nil
}

// CountAddresses 统计满足条件的地址数
func (s *Store) CountAddresses(ctx context.Context, filter storage.AddressFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.filterAddressesLocked(filter))), nil
}

// CountActiveAddresses 统计 updated_at 晚于 since 的地址数
func (s *Store) CountActiveAddresses(ctx context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, addr := range s.addresses {
		if addr.UpdatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (s *Store) filterAddressesLocked(filter storage.AddressFilter) []domain.Address {
	query := strings.ToLower(filter.Query)
	out := make([]domain.Address, 0, len(s.addresses))
	for _, addr := range s.addresses {
		if query != "" && !strings.Contains(strings.ToLower(filter.Prefix+addr.Name), query) {
			continue
		}
		out = append(out, *addr)
	}
	return out
}

// ========== 邮件与附件 ==========

// SaveMail 保存邮件并分配自增 ID
func (s *Store) SaveMail(ctx context.Context, mail *domain.Mail) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMailID++
	mail.ID = s.nextMailID
	if mail.CreatedAt.IsZero() {
		mail.CreatedAt = time.Now().UTC()
	}
	clone := *mail
	s.mails = append(s.mails, &clone)
	return nil
}

// SaveAttachment 保存附件
func (s *Store) SaveAttachment(ctx context.Context, attachment *domain.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.attachments[attachment.ID]; exists {
		return storage.ErrDuplicate
	}
	clone := *attachment
	s.attachments[attachment.ID] = &clone
	return nil
}

// ListMails 按 id 倒序返回某个地址的一页邮件
func (s *Store) ListMails(ctx context.Context, address string, page domain.Page) ([]domain.Mail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return paginate(s.mailsWhereLocked(func(m *domain.Mail) bool { return m.Address == address }), page), nil
}

// CountMails 统计某个地址的邮件数
func (s *Store) CountMails(ctx context.Context, address string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.mailsWhereLocked(func(m *domain.Mail) bool { return m.Address == address }))), nil
}

// ListOrphanedMails 返回收件地址没有目录行的邮件
func (s *Store) ListOrphanedMails(ctx context.Context, prefix string, page domain.Page) ([]domain.Mail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return paginate(s.mailsWhereLocked(s.orphanedLocked(prefix)), page), nil
}

// CountOrphanedMails 统计孤立邮件数
func (s *Store) CountOrphanedMails(ctx context.Context, prefix string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.mailsWhereLocked(s.orphanedLocked(prefix)))), nil
}

// CountAllMails 统计全部邮件数
func (s *Store) CountAllMails(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.mails)), nil
}

// DeleteMailsByAddress 删除某个地址的全部邮件
func (s *Store) DeleteMailsByAddress(ctx context.Context, address string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteMailsLocked(address), nil
}

func (s *Store) deleteMailsLocked(address string) int64 {
	kept := s.mails[:0]
	var deleted int64
	for _, m := range s.mails {
		if m.Address == address {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	s.mails = kept
	return deleted
}

// ListAttachmentRefs 返回给定 message_id 的附件，按附件 id 排序
func (s *Store) ListAttachmentRefs(ctx context.Context, messageIDs []string) ([]domain.AttachmentRef, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = struct{}{}
	}

	refs := make([]domain.AttachmentRef, 0)
	for _, a := range s.attachments {
		if _, ok := wanted[a.MessageID]; ok {
			refs = append(refs, domain.AttachmentRef{ID: a.ID, MessageID: a.MessageID})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

// GetAttachmentData 读取属于 address 的邮件上的附件
func (s *Store) GetAttachmentData(ctx context.Context, address, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.attachments[id]
	if !ok || a.Data == "" {
		return "", storage.ErrNotFound
	}
	for _, m := range s.mails {
		if m.Address == address && m.MessageID != nil && *m.MessageID == a.MessageID {
			return a.Data, nil
		}
	}
	return "", storage.ErrNotFound
}

// mailsWhereLocked 返回满足条件的邮件，按 id 倒序
func (s *Store) mailsWhereLocked(match func(*domain.Mail) bool) []domain.Mail {
	out := make([]domain.Mail, 0)
	for i := len(s.mails) - 1; i >= 0; i-- {
		if match(s.mails[i]) {
			out = append(out, *s.mails[i])
		}
	}
	return out
}

func (s *Store) orphanedLocked(prefix string) func(*domain.Mail) bool {
	known := make(map[string]struct{}, len(s.byName))
	for name := range s.byName {
		known[prefix+name] = struct{}{}
	}
	return func(m *domain.Mail) bool {
		_, ok := known[m.Address]
		return !ok
	}
}

// ========== 自动回复 ==========

// GetAutoReply 获取自动回复设置
func (s *Store) GetAutoReply(ctx context.Context, address string) (*domain.AutoReply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reply, ok := s.autoReplies[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &reply, nil
}

// UpsertAutoReply 整行替换自动回复设置
func (s *Store) UpsertAutoReply(ctx context.Context, reply *domain.AutoReply) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.autoReplies[reply.Address] = *reply
	return nil
}

// Ping 内存存储始终可用
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close 内存存储无需关闭
func (s *Store) Close() error {
	return nil
}

func paginate[T any](items []T, page domain.Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}
