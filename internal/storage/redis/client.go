package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"capmail/backend/internal/config"
)

// Client 封装 Redis 客户端
type Client struct {
	rdb *goredis.Client
	log *zap.Logger
}

// New 连接 Redis 并确认可用。Address 可以是 host:port，也可以是 redis:// 或 rediss:// URL，
// URL 中的口令和库号优先于单独配置。
func New(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	log.Info("redis cache connected",
		zap.String("address", opts.Addr),
		zap.Int("db", opts.DB),
		zap.Bool("tls", opts.TLSConfig != nil),
	)

	return &Client{
		rdb: rdb,
		log: log,
	}, nil
}

func options(cfg config.RedisConfig) (*goredis.Options, error) {
	var opts *goredis.Options
	if strings.HasPrefix(cfg.Address, "redis://") || strings.HasPrefix(cfg.Address, "rediss://") {
		parsed, err := goredis.ParseURL(cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &goredis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	// 只用于计数与统计缓存，连接池保持较小
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.PoolSize = 8
	opts.MinIdleConns = 1
	return opts, nil
}

// Close 关闭连接池
func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		c.log.Warn("redis close failed", zap.Error(err))
		return err
	}
	return nil
}

// Ping 供就绪检查与告警规则使用
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
