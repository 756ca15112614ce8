package utils

import (
	"sync"
	"time"
)

// cacheItem 内部结构，包含值和过期时间
type cacheItem[V any] struct {
	value      V
	expiration time.Time
}

// TTLCache 带过期时间的内存缓存，并发安全
// 过期条目在读取时懒删除
type TTLCache[V any] struct {
	items sync.Map
	ttl   time.Duration
	now   func() time.Time
}

// NewTTLCache ttl <= 0 时条目永不过期
func NewTTLCache[V any](ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{ttl: ttl, now: time.Now}
}

// SetClock 替换时间源 (测试用)
func (c *TTLCache[V]) SetClock(now func() time.Time) {
	c.now = now
}

// Set 写入缓存
func (c *TTLCache[V]) Set(key string, value V) {
	var exp time.Time
	if c.ttl > 0 {
		exp = c.now().Add(c.ttl)
	}
	c.items.Store(key, cacheItem[V]{value: value, expiration: exp})
}

// Get 获取缓存并验证是否过期
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V
	val, ok := c.items.Load(key)
	if !ok {
		return zero, false
	}

	item := val.(cacheItem[V])
	if !item.expiration.IsZero() && !c.now().Before(item.expiration) {
		c.items.Delete(key) // 懒删除
		return zero, false
	}
	return item.value, true
}

// Delete 删除缓存
func (c *TTLCache[V]) Delete(key string) {
	c.items.Delete(key)
}

// Clear 清空全部缓存
func (c *TTLCache[V]) Clear() {
	c.items.Range(func(k, _ any) bool {
		c.items.Delete(k)
		return true
	})
}
