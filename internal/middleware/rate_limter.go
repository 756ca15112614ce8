package middleware

import (
	"sync"
	"time"
)

// ==================== SyncRateLimiter 同步冷却 ====================

// SyncRateLimiter 手动同步冷却器
// 防止频繁触发手动同步导致 Shopee 接口限流
type SyncRateLimiter struct {
	locks sync.Map // key -> *lockEntry
	now   func() time.Time
}

// lockEntry 锁条目
type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// NewSyncRateLimiter 创建冷却器
func NewSyncRateLimiter() *SyncRateLimiter {
	return &SyncRateLimiter{now: time.Now}
}

// SetClock 替换时间源 (测试用)
func (r *SyncRateLimiter) SetClock(now func() time.Time) {
	r.now = now
}

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Check 检查是否允许执行，允许时记录本次执行时间
func (r *SyncRateLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := r.now()
	if !entry.lastTime.IsZero() {
		if elapsed := now.Sub(entry.lastTime); elapsed < interval {
			return CheckResult{Allowed: false, RetryAfter: interval - elapsed}
		}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 清除 key 的冷却 (同步失败后允许立即重试)
func (r *SyncRateLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// ==================== Key ====================

// SyncType 同步类型
type SyncType string

const (
	SyncTypeOrder   SyncType = "order"
	SyncTypeProduct SyncType = "product"
)

// DefaultIntervals 默认冷却间隔
var DefaultIntervals = map[SyncType]time.Duration{
	SyncTypeOrder:   30 * time.Second,
	SyncTypeProduct: 5 * time.Minute,
}

// GetInterval 获取同步类型的默认间隔
func GetInterval(syncType SyncType) time.Duration {
	if interval, ok := DefaultIntervals[syncType]; ok {
		return interval
	}
	return time.Minute
}
