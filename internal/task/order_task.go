package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"shopee_order_v1/internal/service"
)

// DefaultOrderSpec 每 10 分钟同步一次
const DefaultOrderSpec = "0 */10 * * * *"

// OrderSyncer 订单同步
type OrderSyncer interface {
	Sync(ctx context.Context, status string) (*service.OrderSnapshot, error)
}

// ==================== OrderSyncTask 订单同步任务 ====================

// OrderSyncTask 定时同步订单，保持看板缓存为最新
type OrderSyncTask struct {
	orders  OrderSyncer
	status  string
	cron    *cron.Cron
	spec    string
	timeout time.Duration
	log     *zap.Logger
}

// NewOrderSyncTask 创建订单同步任务；status 为空时使用服务的默认状态
func NewOrderSyncTask(orders OrderSyncer, status, spec string, logger *zap.Logger) *OrderSyncTask {
	if spec == "" {
		spec = DefaultOrderSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderSyncTask{
		orders:  orders,
		status:  status,
		cron:    cron.New(cron.WithSeconds()),
		spec:    spec,
		timeout: 10 * time.Minute,
		log:     logger.With(zap.String("task", "order_sync")),
	}
}

// Start 注册定时任务；启动时不同步，首次同步由看板访问触发
func (t *OrderSyncTask) Start() error {
	if _, err := t.cron.AddFunc(t.spec, t.run); err != nil {
		return fmt.Errorf("订单同步定时任务启动失败: %w", err)
	}
	t.cron.Start()
	t.log.Info("[OrderSyncTask] 已启动", zap.String("spec", t.spec))
	return nil
}

// Stop 停止任务
func (t *OrderSyncTask) Stop() {
	<-t.cron.Stop().Done()
	t.log.Info("[OrderSyncTask] 已停止")
}

func (t *OrderSyncTask) run() {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	_, _ = t.RunOnce(ctx)
}

// RunOnce 执行一次同步；未授权时静默跳过 (返回 nil, nil)
func (t *OrderSyncTask) RunOnce(ctx context.Context) (*service.OrderSnapshot, error) {
	snap, err := t.orders.Sync(ctx, t.status)
	if err != nil {
		if errors.Is(err, service.ErrReauthRequired) {
			t.log.Debug("[OrderSyncTask] 未授权，跳过本轮同步")
			return nil, nil
		}
		t.log.Error("[OrderSyncTask] 同步失败", zap.Error(err))
		return nil, err
	}

	t.log.Info("[OrderSyncTask] 同步完成",
		zap.Int("orders", len(snap.Details)),
		zap.Bool("partial", snap.Partial()))
	return snap, nil
}
