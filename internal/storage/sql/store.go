package sql

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"

	"capmail/backend/internal/storage"
)

// Options 数据库连接参数
type Options struct {
	Driver          string // sqlite3, mysql, postgres, pgx
	DSN             string // MySQL 会自动开启 parseTime
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store SQL 数据库存储实现，查询统一用 ? 书写并按驱动 Rebind
type Store struct {
	db      *sqlx.DB
	dialect dialect
}

var _ storage.Store = (*Store)(nil)

// Open 打开数据库连接但不做迁移
func Open(ctx context.Context, opts Options) (*Store, error) {
	d, err := newDialect(opts.Driver)
	if err != nil {
		return nil, err
	}

	dsn := opts.DSN
	switch d.driver {
	case DriverSQLite:
		dsn, err = sqliteDSN(dsn)
	case DriverMySQL:
		dsn, err = mysqlDSN(dsn)
	}
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 设置连接池参数
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if d.driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		// 内存库每个连接都是独立的数据库
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, dialect: d}, nil
}

// NewStore 打开数据库并执行迁移
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	store, err := Open(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping 检查数据库健康状态
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.PingContext(ctx)
}

// Driver 返回驱动名
func (s *Store) Driver() string {
	return s.dialect.driver
}

// sqliteDSN 为文件库创建目录并补充 WAL、外键和忙等待参数
func sqliteDSN(dsn string) (string, error) {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return dsn, nil
	}

	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	if strings.Contains(dsn, "?") {
		return dsn, nil
	}
	return dsn + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", nil
}

// mysqlDSN 强制 parseTime 和 UTC，保证时间列能扫描进 time.Time
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}
