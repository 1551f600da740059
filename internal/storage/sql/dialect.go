package sql

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// 支持的驱动名，与 database/sql 注册名一致
const (
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres" // lib/pq
	DriverPgx      = "pgx"      // jackc/pgx/v5/stdlib
)

// 唯一约束冲突错误码
const (
	mysqlDuplicateEntry     = 1062
	postgresUniqueViolation = "23505"
)

// dialect 屏蔽不同数据库在拼接、upsert 与自增主键上的差异
type dialect struct {
	driver string
}

func newDialect(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite, DriverMySQL, DriverPostgres, DriverPgx:
		return dialect{driver: driver}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver: %s (supported: sqlite3, mysql, postgres, pgx)", driver)
	}
}

func (d dialect) isPostgres() bool {
	return d.driver == DriverPostgres || d.driver == DriverPgx
}

// displayName 生成 "前缀 + name" 的表达式，前缀以绑定参数传入
func (d dialect) displayName() string {
	switch {
	case d.driver == DriverMySQL:
		return "CONCAT(?, name)"
	case d.isPostgres():
		return "(CAST(? AS TEXT) || name)"
	default:
		return "(? || name)"
	}
}

// upsertAutoReply 整行替换自动回复的语句
func (d dialect) upsertAutoReply() string {
	const insert = `INSERT INTO auto_reply_mails (address, name, subject, message, source_prefix, enabled)
		VALUES (?, ?, ?, ?, ?, ?)`
	if d.driver == DriverMySQL {
		return insert + `
		ON DUPLICATE KEY UPDATE name = VALUES(name), subject = VALUES(subject), message = VALUES(message),
			source_prefix = VALUES(source_prefix), enabled = VALUES(enabled)`
	}
	return insert + `
		ON CONFLICT (address) DO UPDATE SET name = excluded.name, subject = excluded.subject,
			message = excluded.message, source_prefix = excluded.source_prefix, enabled = excluded.enabled`
}

// isUniqueViolation 将各驱动的唯一约束错误归一
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == postgresUniqueViolation
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresUniqueViolation
	}

	return false
}

// escapeLike 转义 LIKE 通配符，配合 ESCAPE '!' 使用
func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '!', '%', '_':
			out = append(out, '!')
		}
		out = append(out, r)
	}
	return string(out)
}
