package net

import (
	"context"
	"fmt"
	"time"
)

// SleepFunc 可中断的等待，测试中替换为无等待实现
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryPolicy 线性退避重试策略
// 第 n 次失败后等待 Delay*n，最后一次失败不再等待
type RetryPolicy struct {
	MaxAttempts int              // 总尝试次数 (含首次)，<=0 视为 1
	Delay       time.Duration    // 退避基数
	Retryable   func(error) bool // nil 表示所有错误均可重试
	Sleep       SleepFunc        // nil 使用 SleepContext
}

// ExhaustedError 重试预算耗尽
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry budget exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do 执行 op 直到成功、遇到不可重试错误、预算耗尽或 ctx 结束
// 返回实际尝试次数；预算耗尽时错误为 *ExhaustedError
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return attempt, lastErr
		}
		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, p.Delay*time.Duration(attempt)); err != nil {
			return attempt, err
		}
	}

	return maxAttempts, &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

// SleepContext 等待 d，ctx 结束时提前返回
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
