package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"shopee_order_v1/internal/model"
	"shopee_order_v1/internal/service"
)

// DefaultTokenSpec 每 30 分钟检查一次 (秒级 cron)
const DefaultTokenSpec = "0 */30 * * * *"

// TokenKeeper 获取有效 Token，必要时在内部完成刷新
type TokenKeeper interface {
	GetValidToken(ctx context.Context) (*model.ShopeeToken, error)
}

// TokenTask Token 保活任务
// 没有用户访问时也能在阈值内完成刷新，避免 access_token 过期
type TokenTask struct {
	tokens  TokenKeeper
	cron    *cron.Cron
	spec    string
	timeout time.Duration
	log     *zap.Logger
}

// NewTokenTask 创建 Token 保活任务；spec 为空时使用 DefaultTokenSpec
func NewTokenTask(tokens TokenKeeper, spec string, logger *zap.Logger) *TokenTask {
	if spec == "" {
		spec = DefaultTokenSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenTask{
		tokens:  tokens,
		cron:    cron.New(cron.WithSeconds()),
		spec:    spec,
		timeout: time.Minute,
		log:     logger.With(zap.String("task", "token")),
	}
}

// Start 启动时执行一次，之后按 spec 定时执行
func (t *TokenTask) Start() error {
	if _, err := t.cron.AddFunc(t.spec, t.run); err != nil {
		return fmt.Errorf("无法启动 Token 定时任务: %w", err)
	}

	go func() {
		t.log.Info("[TokenTask] 服务启动，执行首次 Token 检查...")
		t.run()
	}()

	t.cron.Start()
	t.log.Info("[TokenTask] 已启动", zap.String("spec", t.spec))
	return nil
}

// Stop 停止并等待正在执行的任务结束
func (t *TokenTask) Stop() {
	<-t.cron.Stop().Done()
	t.log.Info("[TokenTask] 已停止")
}

func (t *TokenTask) run() {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	_ = t.RunOnce(ctx)
}

// RunOnce 执行一次检查；需要重新授权时只记录日志
func (t *TokenTask) RunOnce(ctx context.Context) error {
	tok, err := t.tokens.GetValidToken(ctx)
	if err != nil {
		if errors.Is(err, service.ErrReauthRequired) {
			t.log.Warn("[TokenTask] 需要重新授权，跳过", zap.Error(err))
			return err
		}
		t.log.Error("[TokenTask] Token 检查失败", zap.Error(err))
		return err
	}

	t.log.Debug("[TokenTask] Token 有效",
		zap.Int64("shop_id", tok.ShopID),
		zap.Int64("expires_at", tok.AccessExpiresAt()))
	return nil
}
