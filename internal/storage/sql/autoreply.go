package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"capmail/backend/internal/domain"
	"capmail/backend/internal/storage"
)

// GetAutoReply 获取自动回复设置
func (s *Store) GetAutoReply(ctx context.Context, address string) (*domain.AutoReply, error) {
	var reply domain.AutoReply
	query := s.db.Rebind(`SELECT address, name, subject, message, source_prefix, enabled
		FROM auto_reply_mails WHERE address = ?`)
	err := s.db.GetContext(ctx, &reply, query, address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auto reply: %w", err)
	}
	return &reply, nil
}

// UpsertAutoReply 整行替换自动回复设置
func (s *Store) UpsertAutoReply(ctx context.Context, reply *domain.AutoReply) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(s.dialect.upsertAutoReply()),
		reply.Address, reply.Name, reply.Subject, reply.Message, reply.SourcePrefix, reply.Enabled)
	if err != nil {
		return fmt.Errorf("failed to save auto reply: %w", err)
	}
	return nil
}
