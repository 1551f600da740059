package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 令牌密钥占位值，禁止在任何环境中使用
const placeholderSecret = "change-me-in-production"

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// MailboxConfig 定义地址目录的业务配置
type MailboxConfig struct {
	Prefix  string   // 展示前缀，拼接在目录名前面
	Domains []string // 允许创建地址的域名列表
}

// TokenConfig 能力令牌配置
//
// 轮换 Secret 是唯一的吊销手段：修改配置并重启所有实例后，
// 全部已签发令牌同时失效，需要由管理员通过 /admin/show_password/:id 重新签发。
type TokenConfig struct {
	Secret string        // 签名密钥，至少 32 字符
	Expiry time.Duration // 有效期，0 表示永不过期
}

// AccessConfig 站点访问口令，配置后创建地址与令牌接口需要携带 x-custom-auth
type AccessConfig struct {
	Passwords []string
}

// AdminConfig 管理员口令（明文或 bcrypt 哈希），通过 x-admin-auth 提交
type AdminConfig struct {
	Passwords []string
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到控制台
}

// DatabaseConfig 定义数据库连接配置
type DatabaseConfig struct {
	Type            string // 数据库类型: 空(内存), "sqlite3", "mysql", "postgres", "pgx"
	DSN             string // 数据库连接字符串
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig 定义 Redis 缓存服务配置，Address 为空时不使用 Redis
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// RateLimitConfig 创建地址的限流配置，均为 0 时关闭
type RateLimitConfig struct {
	PerIP     int           // 单个 IP 在窗口内最多创建的地址数
	Window    time.Duration // 计数窗口
	GlobalRPS float64       // 全局每秒创建请求数
	Burst     int
}

// StatsConfig 管理后台统计缓存，TTL 为 0 时不缓存
type StatsConfig struct {
	CacheTTL time.Duration
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server    ServerConfig
	Mailbox   MailboxConfig
	Token     TokenConfig
	Access    AccessConfig
	Admin     AdminConfig
	CORS      CORSConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Stats     StatsConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: CAPMAIL_，例如 CAPMAIL_TOKEN_SECRET, CAPMAIL_MAILBOX_DOMAINS
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("capmail")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("mailbox.prefix", "")
	v.SetDefault("mailbox.domains", "")
	v.SetDefault("token.secret", placeholderSecret)
	v.SetDefault("token.expiry", "0")
	v.SetDefault("access.passwords", "")
	v.SetDefault("admin.passwords", "")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("database.type", "") // 默认为空，使用内存存储
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ratelimit.per_ip", 0)
	v.SetDefault("ratelimit.window", "1h")
	v.SetDefault("ratelimit.global_rps", 0)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("stats.cache_ttl", "0")

	domains := parseDomains(v.GetString("mailbox.domains"))
	if len(domains) == 0 {
		return nil, fmt.Errorf("mailbox.domains must not be empty")
	}

	secret := v.GetString("token.secret")

	// 安全检查：禁止使用默认的令牌密钥
	if secret == placeholderSecret {
		return nil, fmt.Errorf("SECURITY ERROR: token secret cannot be the default value. Please set CAPMAIL_TOKEN_SECRET environment variable")
	}
	if len(secret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: token secret must be at least 32 characters long")
	}

	tokenExpiry, err := parseDuration(v.GetString("token.expiry"))
	if err != nil {
		return nil, fmt.Errorf("invalid token.expiry: %w", err)
	}

	corsOrigins := parseList(v.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	dbType := strings.ToLower(v.GetString("database.type"))
	switch dbType {
	case "", "sqlite3", "mysql", "postgres", "pgx":
	default:
		return nil, fmt.Errorf("unsupported database.type: %s (supported: sqlite3, mysql, postgres, pgx)", dbType)
	}
	if dbType != "" && v.GetString("database.dsn") == "" {
		return nil, fmt.Errorf("database.dsn is required when database.type is %s", dbType)
	}

	connMaxLifetime, err := time.ParseDuration(v.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	window, err := time.ParseDuration(v.GetString("ratelimit.window"))
	if err != nil || window <= 0 {
		window = time.Hour
	}

	statsTTL, err := parseDuration(v.GetString("stats.cache_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid stats.cache_ttl: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Mailbox: MailboxConfig{
			Prefix:  v.GetString("mailbox.prefix"),
			Domains: domains,
		},
		Token: TokenConfig{
			Secret: secret,
			Expiry: tokenExpiry,
		},
		Access: AccessConfig{
			Passwords: parseList(v.GetString("access.passwords")),
		},
		Admin: AdminConfig{
			Passwords: parseList(v.GetString("admin.passwords")),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
		Database: DatabaseConfig{
			Type:            dbType,
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			PerIP:     v.GetInt("ratelimit.per_ip"),
			Window:    window,
			GlobalRPS: v.GetFloat64("ratelimit.global_rps"),
			Burst:     v.GetInt("ratelimit.burst"),
		},
		Stats: StatsConfig{
			CacheTTL: statsTTL,
		},
	}

	return cfg, nil
}

// parseDuration 解析时长，"0" 和空串视为 0
func parseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "0" {
		return 0, nil
	}
	return time.ParseDuration(value)
}

// parseDomains 将逗号分隔的域名字符串解析为小写域名数组
func parseDomains(value string) []string {
	out := parseList(value)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

// parseList 将逗号分隔的字符串解析为字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env
//
// 文件不存在时静默跳过，已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
