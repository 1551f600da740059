package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"capmail/backend/internal/domain"
	"capmail/backend/internal/storage"
)

const addressColumns = "id, name, created_at, updated_at"

// CreateAddress 插入新地址，名字冲突时返回 storage.ErrDuplicate
func (s *Store) CreateAddress(ctx context.Context, name string, now time.Time) error {
	query := s.db.Rebind(`INSERT INTO address (name, created_at, updated_at) VALUES (?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, name, now.UTC(), now.UTC()); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("failed to create address: %w", err)
	}
	return nil
}

// GetAddressByID 根据 ID 获取地址
func (s *Store) GetAddressByID(ctx context.Context, id int64) (*domain.Address, error) {
	return s.getAddress(ctx, "id = ?", id)
}

// GetAddressByName 根据目录名获取地址
func (s *Store) GetAddressByName(ctx context.Context, name string) (*domain.Address, error) {
	return s.getAddress(ctx, "name = ?", name)
}

func (s *Store) getAddress(ctx context.Context, where string, arg interface{}) (*domain.Address, error) {
	var addr domain.Address
	query := s.db.Rebind(`SELECT ` + addressColumns + ` FROM address WHERE ` + where)
	err := s.db.GetContext(ctx, &addr, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return &addr, nil
}

// TouchAddress 刷新 updated_at
func (s *Store) TouchAddress(ctx context.Context, name string, at time.Time) error {
	query := s.db.Rebind(`UPDATE address SET updated_at = ? WHERE name = ?`)
	if _, err := s.db.ExecContext(ctx, query, at.UTC(), name); err != nil {
		return fmt.Errorf("failed to touch address: %w", err)
	}
	return nil
}

// DeleteAddressCascade 在一个事务中先删邮件再删地址行
func (s *Store) DeleteAddressCascade(ctx context.Context, id int64, address string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM mails WHERE address = ?`), address)
	if err != nil {
		return 0, fmt.Errorf("failed to delete mails: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted mails: %w", err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM address WHERE id = ?`), id); err != nil {
		return 0, fmt.Errorf("failed to delete address: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit address deletion: %w", err)
	}
	return deleted, nil
}

// ListAddresses 按 id 倒序分页，可按展示名过滤
func (s *Store) ListAddresses(ctx context.Context, filter storage.AddressFilter, page domain.Page) ([]domain.Address, error) {
	where, args := s.addressWhere(filter)
	query := s.db.Rebind(`SELECT ` + addressColumns + ` FROM address` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`)
	args = append(args, page.Limit, page.Offset)

	addresses := make([]domain.Address, 0, page.Limit)
	if err := s.db.SelectContext(ctx, &addresses, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	return addresses, nil
}

// CountAddresses 统计满足条件的地址数
func (s *Store) CountAddresses(ctx context.Context, filter storage.AddressFilter) (int64, error) {
	where, args := s.addressWhere(filter)
	return s.count(ctx, `SELECT COUNT(*) FROM address`+where, args...)
}

// CountActiveAddresses 统计 updated_at 晚于 since 的地址数
func (s *Store) CountActiveAddresses(ctx context.Context, since time.Time) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM address WHERE updated_at > ?`, since.UTC())
}

// addressWhere 展示名子串匹配，前缀和关键字都作为绑定参数
func (s *Store) addressWhere(filter storage.AddressFilter) (string, []interface{}) {
	if filter.Query == "" {
		return "", nil
	}
	pattern := "%" + escapeLike(strings.ToLower(filter.Query)) + "%"
	return ` WHERE LOWER(` + s.dialect.displayName() + `) LIKE ? ESCAPE '!'`,
		[]interface{}{filter.Prefix, pattern}
}

func (s *Store) count(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}
