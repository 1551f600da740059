package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"capmail/backend/internal/storage"
)

// LocalCache 本地内存缓存
//
// 特点：
// - 值以 JSON 保存，读取时解码到调用方给出的目标
// - 支持 TTL 过期，ttl 为 0 时使用默认值
// - 计数器窗口从第一次计数开始
// - 后台定期清理过期条目
//
// 只在单实例部署下使用，多实例请使用 Redis 实现。
type LocalCache struct {
	mu      sync.Mutex
	data    map[string]*cacheEntry
	ttl     time.Duration
	now     func() time.Time
	stop    chan struct{}
	stopped sync.Once
}

type cacheEntry struct {
	value     []byte
	count     int64
	expiresAt time.Time
}

var _ storage.Cache = (*LocalCache)(nil)

// NewLocalCache 创建本地缓存
//
// 参数:
//   - ttl: 默认过期时间
func NewLocalCache(ttl time.Duration) *LocalCache {
	cache := &LocalCache{
		data: make(map[string]*cacheEntry),
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}

	// 启动定期清理
	go cache.cleanupLoop()

	return cache
}

// Get 读取缓存值
func (c *LocalCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	entry, ok := c.live(key)
	var value []byte
	if ok {
		value = entry.value
	}
	c.mu.Unlock()

	if !ok || value == nil {
		return storage.ErrNotFound
	}
	return json.Unmarshal(value, dest)
}

// Set 设置缓存值
func (c *LocalCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	c.data[key] = &cacheEntry{value: data, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Incr 增加计数
func (c *LocalCache) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.live(key)
	if !ok {
		entry = &cacheEntry{expiresAt: c.now().Add(window)}
		c.data[key] = entry
	}
	entry.count++
	return entry.count, nil
}

// Close 停止后台清理
func (c *LocalCache) Close() {
	c.stopped.Do(func() { close(c.stop) })
}

// live 返回未过期的条目，调用方需持有锁
func (c *LocalCache) live(key string) (*cacheEntry, bool) {
	entry, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.data, key)
		return nil, false
	}
	return entry, true
}

// cleanupLoop 定期清理过期条目
func (c *LocalCache) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for key, entry := range c.data {
				if !now.Before(entry.expiresAt) {
					delete(c.data, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
