package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fachebot/oneline/internal/logger"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "oneline:"

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Cache 两级缓存：L1 进程内存，L2 Redis（可选）
type Cache struct {
	l1         sync.Map // key -> *entry
	rdb        *redis.Client
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	hits   atomic.Int64
	misses atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// New 创建缓存，redisURL 为空或不可用时仅使用内存缓存
func New(redisURL string, ttl time.Duration, maxEntries int) *Cache {
	c := &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Warnf("[Cache] Redis URL 无效，仅使用内存缓存, %v", err)
		} else {
			rdb := redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				logger.Warnf("[Cache] Redis 连接失败，仅使用内存缓存, %v", err)
				_ = rdb.Close()
			} else {
				c.rdb = rdb
				logger.Infof("[Cache] 已连接 Redis, addr: %s", opts.Addr)
			}
		}
	}

	logger.Infof("[Cache] 缓存已初始化, ttl: %s, redis: %v, maxEntries: %d", ttl, c.rdb != nil, maxEntries)
	go c.cleanupLoop(5 * time.Minute)
	return c
}

// Key 对原始键做哈希，避免过长或包含特殊字符
func Key(raw string) string {
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:12])
}

// Get 依次查询 L1、L2，L2 命中时回填 L1
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	key = Key(key)

	if val, ok := c.l1.Load(key); ok {
		e := val.(*entry)
		if c.now().Before(e.expiresAt) && json.Unmarshal(e.data, dest) == nil {
			c.hits.Add(1)
			return true
		}
		c.l1.Delete(key)
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil && json.Unmarshal(data, dest) == nil {
			c.hits.Add(1)
			c.l1.Store(key, &entry{data: data, expiresAt: c.now().Add(c.ttl)})
			return true
		}
		if err != nil && err != redis.Nil {
			logger.Debugf("[Cache] 读取 Redis 失败, %v", err)
		}
	}

	c.misses.Add(1)
	return false
}

// Set 同时写入 L1 和 L2
func (c *Cache) Set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		logger.Warnf("[Cache] 序列化缓存值失败, %v", err)
		return
	}

	key = Key(key)
	c.evictIfNeeded()
	c.l1.Store(key, &entry{data: data, expiresAt: c.now().Add(c.ttl)})

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			logger.Debugf("[Cache] 写入 Redis 失败, %v", err)
		}
	}
}

// Stats 返回命中与未命中次数
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len 返回 L1 条目数
func (c *Cache) Len() int {
	n := 0
	c.l1.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// evictIfNeeded 超出上限时先删除过期条目，仍超出则删除最早过期的条目
func (c *Cache) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}

	count := c.Len()
	if count < c.maxEntries {
		return
	}

	now := c.now()
	c.l1.Range(func(key, val any) bool {
		if e := val.(*entry); now.After(e.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return count >= c.maxEntries
	})

	for count >= c.maxEntries {
		var (
			oldestKey any
			oldestAt  time.Time
		)
		c.l1.Range(func(key, val any) bool {
			e := val.(*entry)
			if oldestKey == nil || e.expiresAt.Before(oldestAt) {
				oldestKey, oldestAt = key, e.expiresAt
			}
			return true
		})
		if oldestKey == nil {
			break
		}
		c.l1.Delete(oldestKey)
		count--
	}
}

func (c *Cache) purgeExpired() {
	now := c.now()
	c.l1.Range(func(key, val any) bool {
		if e := val.(*entry); now.After(e.expiresAt) {
			c.l1.Delete(key)
		}
		return true
	})
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.purgeExpired()
		}
	}
}

// Close 停止清理任务并关闭 Redis 连接
func (c *Cache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}
