package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-development-32-chars-long-at-least"

func TestLoad(t *testing.T) {
	t.Run("加载默认配置成功", func(t *testing.T) {
		t.Setenv("CAPMAIL_TOKEN_SECRET", testSecret)
		t.Setenv("CAPMAIL_MAILBOX_DOMAINS", "Example.com, test.dev")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "", cfg.Mailbox.Prefix)
		assert.Equal(t, []string{"example.com", "test.dev"}, cfg.Mailbox.Domains)
		assert.Equal(t, testSecret, cfg.Token.Secret)
		assert.Equal(t, time.Duration(0), cfg.Token.Expiry)
		assert.Empty(t, cfg.Access.Passwords)
		assert.Empty(t, cfg.Admin.Passwords)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "", cfg.Database.Type)
		assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
		assert.Equal(t, "", cfg.Redis.Address)
		assert.Equal(t, 0, cfg.RateLimit.PerIP)
		assert.Equal(t, time.Hour, cfg.RateLimit.Window)
		assert.Equal(t, time.Duration(0), cfg.Stats.CacheTTL)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		t.Setenv("CAPMAIL_TOKEN_SECRET", testSecret)
		t.Setenv("CAPMAIL_MAILBOX_DOMAINS", "custom.mail")
		t.Setenv("CAPMAIL_MAILBOX_PREFIX", "tmp")
		t.Setenv("CAPMAIL_TOKEN_EXPIRY", "720h")
		t.Setenv("CAPMAIL_SERVER_PORT", "9090")
		t.Setenv("CAPMAIL_ACCESS_PASSWORDS", "one,two")
		t.Setenv("CAPMAIL_ADMIN_PASSWORDS", "root")
		t.Setenv("CAPMAIL_DATABASE_TYPE", "SQLITE3")
		t.Setenv("CAPMAIL_DATABASE_DSN", "file:capmail.db")
		t.Setenv("CAPMAIL_RATELIMIT_PER_IP", "5")
		t.Setenv("CAPMAIL_STATS_CACHE_TTL", "30s")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "tmp", cfg.Mailbox.Prefix)
		assert.Equal(t, 720*time.Hour, cfg.Token.Expiry)
		assert.Equal(t, []string{"one", "two"}, cfg.Access.Passwords)
		assert.Equal(t, []string{"root"}, cfg.Admin.Passwords)
		assert.Equal(t, "sqlite3", cfg.Database.Type)
		assert.Equal(t, 5, cfg.RateLimit.PerIP)
		assert.Equal(t, 30*time.Second, cfg.Stats.CacheTTL)
	})

	t.Run("拒绝默认密钥", func(t *testing.T) {
		t.Setenv("CAPMAIL_TOKEN_SECRET", "change-me-in-production")
		t.Setenv("CAPMAIL_MAILBOX_DOMAINS", "example.com")

		_, err := Load()
		assert.ErrorContains(t, err, "default value")
	})

	t.Run("拒绝过短密钥", func(t *testing.T) {
		t.Setenv("CAPMAIL_TOKEN_SECRET", "short")
		t.Setenv("CAPMAIL_MAILBOX_DOMAINS", "example.com")

		_, err := Load()
		assert.ErrorContains(t, err, "at least 32")
	})

	t.Run("域名列表不能为空", func(t *testing.T) {
		t.Setenv("CAPMAIL_TOKEN_SECRET", testSecret)
		t.Setenv("CAPMAIL_MAILBOX_DOMAINS", " , ")

		_, err := Load()
		assert.ErrorContains(t, err, "mailbox.domains")
	})

	t.Run("不支持的数据库类型", func(t *testing.T) {
		t.Setenv("CAPMAIL_TOKEN_SECRET", testSecret)
		t.Setenv("CAPMAIL_MAILBOX_DOMAINS", "example.com")
		t.Setenv("CAPMAIL_DATABASE_TYPE", "oracle")
		t.Setenv("CAPMAIL_DATABASE_DSN", "x")

		_, err := Load()
		assert.ErrorContains(t, err, "unsupported database.type")
	})

	t.Run("数据库类型需要 DSN", func(t *testing.T) {
		t.Setenv("CAPMAIL_TOKEN_SECRET", testSecret)
		t.Setenv("CAPMAIL_MAILBOX_DOMAINS", "example.com")
		t.Setenv("CAPMAIL_DATABASE_TYPE", "mysql")
		t.Setenv("CAPMAIL_DATABASE_DSN", "")

		_, err := Load()
		assert.ErrorContains(t, err, "database.dsn")
	})
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseList(" a, ,b "))
	assert.Empty(t, parseList(""))
}
