package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== 同步冷却中间件 ====================

// SyncRateLimit 手动同步冷却中间件，按同步类型维度限流
//
// 使用示例:
//
//	orders.POST("/sync",
//	    middleware.SyncRateLimit(limiter, middleware.SyncTypeOrder, 0),
//	    orderCtl.Sync,
//	)
//
// 下游处理返回 5xx 时清除冷却，允许立即重试
func SyncRateLimit(limiter *SyncRateLimiter, syncType SyncType, interval time.Duration) gin.HandlerFunc {
	if interval <= 0 {
		interval = GetInterval(syncType)
	}
	key := string(syncType)

	return func(c *gin.Context) {
		result := limiter.Check(key, interval)
		if !result.Allowed {
			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": formatRetryMessage(result.RetryAfter),
				"data": gin.H{
					"retry_after": retryAfter,
					"sync_type":   syncType,
				},
			})
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			limiter.Reset(key)
		}
	}
}

// formatRetryMessage 格式化重试提示信息
func formatRetryMessage(d time.Duration) string {
	seconds := int(math.Ceil(d.Seconds()))

	if seconds < 60 {
		return fmt.Sprintf("同步冷却中，请 %d 秒后重试", seconds)
	}

	minutes := seconds / 60
	remainingSeconds := seconds % 60

	if remainingSeconds == 0 {
		return fmt.Sprintf("同步冷却中，请 %d 分钟后重试", minutes)
	}

	return fmt.Sprintf("同步冷却中，请 %d 分 %d 秒后重试", minutes, remainingSeconds)
}
