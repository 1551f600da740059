package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"capmail/backend/internal/storage"
)

// keyPrefix 所有键的命名空间
const keyPrefix = "capmail:"

// Cache 基于 Redis 的缓存与计数器，多实例部署时共享
type Cache struct {
	client *Client
}

var _ storage.Cache = (*Cache)(nil)

// NewCache 创建 Redis 缓存
func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

// Get 读取 JSON 编码的值
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return storage.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// Set 写入 JSON 编码的值
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.rdb.Set(ctx, keyPrefix+key, data, ttl).Err()
}

// Incr 增加计数，窗口从第一次计数开始
func (c *Cache) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	key = keyPrefix + key

	count, err := c.client.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	// 新键设置过期时间
	if count == 1 {
		if err := c.client.rdb.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}

	return count, nil
}
