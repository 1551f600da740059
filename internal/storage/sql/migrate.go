package sql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"capmail/backend/internal/domain"
)

// sqliteSchema SQLite 建表语句，其余数据库由 GORM 根据领域模型迁移
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS address (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS mails (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    address TEXT NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    subject TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    message_id TEXT,
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS attachments (
    id TEXT PRIMARY KEY,
    message_id TEXT NOT NULL,
    data TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS auto_reply_mails (
    address TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    subject TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    source_prefix TEXT NOT NULL DEFAULT '',
    enabled INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_address_updated_at ON address(updated_at);
CREATE INDEX IF NOT EXISTS idx_mails_address ON mails(address);
CREATE INDEX IF NOT EXISTS idx_mails_message_id ON mails(message_id);
CREATE INDEX IF NOT EXISTS idx_attachments_message_id ON attachments(message_id);
`

// Migrate 执行数据库迁移
func (s *Store) Migrate(ctx context.Context) error {
	if s.dialect.driver == DriverSQLite {
		if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	}

	gormDB, err := s.openGorm()
	if err != nil {
		return fmt.Errorf("failed to initialize GORM: %w", err)
	}

	return gormDB.WithContext(ctx).AutoMigrate(
		&domain.Address{},
		&domain.Mail{},
		&domain.Attachment{},
		&domain.AutoReply{},
	)
}

// openGorm 在已有连接上初始化 GORM，仅用于自动迁移
func (s *Store) openGorm() (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	if s.dialect.driver == DriverMySQL {
		return gorm.Open(mysql.New(mysql.Config{
			Conn: s.db.DB,
		}), gormConfig)
	}
	return gorm.Open(postgres.New(postgres.Config{
		Conn: s.db.DB,
	}), gormConfig)
}
