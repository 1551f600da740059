package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"capmail/backend/internal/domain"
	"capmail/backend/internal/storage"
)

const mailColumns = "id, address, source, subject, message, message_id, created_at"

// SaveMail 保存邮件并回填自增 ID
func (s *Store) SaveMail(ctx context.Context, mail *domain.Mail) error {
	if mail.CreatedAt.IsZero() {
		mail.CreatedAt = time.Now().UTC()
	}

	const insert = `INSERT INTO mails (address, source, subject, message, message_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	args := []interface{}{mail.Address, mail.Source, mail.Subject, mail.Message, mail.MessageID, mail.CreatedAt.UTC()}

	// PostgreSQL 驱动不支持 LastInsertId
	if s.dialect.isPostgres() {
		if err := s.db.GetContext(ctx, &mail.ID, s.db.Rebind(insert+` RETURNING id`), args...); err != nil {
			return fmt.Errorf("failed to save mail: %w", err)
		}
		return nil
	}

	result, err := s.db.ExecContext(ctx, s.db.Rebind(insert), args...)
	if err != nil {
		return fmt.Errorf("failed to save mail: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	mail.ID = id
	return nil
}

// SaveAttachment 保存附件
func (s *Store) SaveAttachment(ctx context.Context, attachment *domain.Attachment) error {
	query := s.db.Rebind(`INSERT INTO attachments (id, message_id, data) VALUES (?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, attachment.ID, attachment.MessageID, attachment.Data); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("failed to save attachment: %w", err)
	}
	return nil
}

// ListMails 按 id 倒序返回某个地址的一页邮件
func (s *Store) ListMails(ctx context.Context, address string, page domain.Page) ([]domain.Mail, error) {
	return s.selectMails(ctx,
		`SELECT `+mailColumns+` FROM mails WHERE address = ? ORDER BY id DESC LIMIT ? OFFSET ?`,
		address, page.Limit, page.Offset)
}

// CountMails 统计某个地址的邮件数
func (s *Store) CountMails(ctx context.Context, address string) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM mails WHERE address = ?`, address)
}

// ListOrphanedMails 返回收件地址在目录中没有对应行的邮件
func (s *Store) ListOrphanedMails(ctx context.Context, prefix string, page domain.Page) ([]domain.Mail, error) {
	return s.selectMails(ctx,
		`SELECT `+mailColumns+` FROM mails WHERE `+s.orphanedWhere()+` ORDER BY id DESC LIMIT ? OFFSET ?`,
		prefix, page.Limit, page.Offset)
}

// CountOrphanedMails 统计孤立邮件数
func (s *Store) CountOrphanedMails(ctx context.Context, prefix string) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM mails WHERE `+s.orphanedWhere(), prefix)
}

// CountAllMails 统计全部邮件数
func (s *Store) CountAllMails(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM mails`)
}

// DeleteMailsByAddress 删除某个地址的全部邮件
func (s *Store) DeleteMailsByAddress(ctx context.Context, address string) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM mails WHERE address = ?`), address)
	if err != nil {
		return 0, fmt.Errorf("failed to delete mails: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted mails: %w", err)
	}
	return n, nil
}

// ListAttachmentRefs 一次 IN 查询取回附件，按附件 id 排序保证首个匹配稳定
func (s *Store) ListAttachmentRefs(ctx context.Context, messageIDs []string) ([]domain.AttachmentRef, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT id, message_id FROM attachments WHERE message_id IN (?) ORDER BY id`, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build attachment query: %w", err)
	}

	refs := make([]domain.AttachmentRef, 0, len(messageIDs))
	if err := s.db.SelectContext(ctx, &refs, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return refs, nil
}

// GetAttachmentData 读取属于 address 的邮件上的附件
func (s *Store) GetAttachmentData(ctx context.Context, address, id string) (string, error) {
	query := s.db.Rebind(`SELECT a.data FROM attachments a
		WHERE a.id = ? AND EXISTS (
			SELECT 1 FROM mails m WHERE m.message_id = a.message_id AND m.address = ?
		)`)

	var data sql.NullString
	err := s.db.GetContext(ctx, &data, query, id, address)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get attachment: %w", err)
	}
	if !data.Valid || data.String == "" {
		return "", storage.ErrNotFound
	}
	return data.String, nil
}

func (s *Store) orphanedWhere() string {
	return `address NOT IN (SELECT ` + s.dialect.displayName() + ` FROM address)`
}

func (s *Store) selectMails(ctx context.Context, query string, args ...interface{}) ([]domain.Mail, error) {
	mails := make([]domain.Mail, 0)
	if err := s.db.SelectContext(ctx, &mails, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list mails: %w", err)
	}
	return mails, nil
}
