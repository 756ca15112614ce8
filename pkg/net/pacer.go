package net

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer 保证连续请求之间至少间隔 interval，用于遵守平台限流
// 首次调用不等待
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer interval <= 0 时不做任何限制
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait 阻塞到允许发出下一个请求
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}
