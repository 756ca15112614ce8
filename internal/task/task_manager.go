package task

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"shopee_order_v1/internal/service"
)

// ErrTaskDisabled 对应任务未启用
var ErrTaskDisabled = errors.New("task disabled")

// ==================== TaskManager 后台任务管理器 ====================

// TaskManager 统一管理后台任务的启动与停止
type TaskManager struct {
	tokenTask   *TokenTask
	orderTask   *OrderSyncTask
	productTask *ProductSyncTask
	log         *zap.Logger
}

// TaskManagerDeps 任务管理器依赖；为 nil 的依赖对应的任务不启用
type TaskManagerDeps struct {
	Tokens  TokenKeeper
	Orders  OrderSyncer
	Catalog CatalogLoader
}

// TaskManagerConfig 各任务的 cron 表达式 (秒级)；为空使用默认值
type TaskManagerConfig struct {
	TokenSpec   string
	OrderSpec   string
	OrderStatus string
	ProductSpec string
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps TaskManagerDeps, cfg TaskManagerConfig, logger *zap.Logger) *TaskManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	tm := &TaskManager{log: logger}

	if deps.Tokens != nil {
		tm.tokenTask = NewTokenTask(deps.Tokens, cfg.TokenSpec, logger)
	}
	if deps.Orders != nil {
		tm.orderTask = NewOrderSyncTask(deps.Orders, cfg.OrderStatus, cfg.OrderSpec, logger)
	}
	if deps.Catalog != nil {
		tm.productTask = NewProductSyncTask(deps.Catalog, cfg.ProductSpec, logger)
	}
	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务；任一任务注册失败时停止已启动的任务并返回错误
func (tm *TaskManager) Start() error {
	tm.log.Info("[TaskManager] 正在启动后台任务...")

	var started []func()
	fail := func(err error) error {
		for _, stop := range started {
			stop()
		}
		return err
	}

	if tm.tokenTask != nil {
		if err := tm.tokenTask.Start(); err != nil {
			return fail(err)
		}
		started = append(started, tm.tokenTask.Stop)
	}
	if tm.orderTask != nil {
		if err := tm.orderTask.Start(); err != nil {
			return fail(err)
		}
		started = append(started, tm.orderTask.Stop)
	}
	if tm.productTask != nil {
		if err := tm.productTask.Start(); err != nil {
			return fail(err)
		}
		started = append(started, tm.productTask.Stop)
	}

	tm.log.Info("[TaskManager] 后台任务已全部启动")
	return nil
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	tm.log.Info("[TaskManager] 正在停止后台任务...")

	if tm.tokenTask != nil {
		tm.tokenTask.Stop()
	}
	if tm.orderTask != nil {
		tm.orderTask.Stop()
	}
	if tm.productTask != nil {
		tm.productTask.Stop()
	}

	tm.log.Info("[TaskManager] 后台任务已全部停止")
}

// ==================== 手动触发接口 ====================

// TriggerOrderSync 立即执行一次订单同步
func (tm *TaskManager) TriggerOrderSync(ctx context.Context) (*service.OrderSnapshot, error) {
	if tm.orderTask == nil {
		return nil, ErrTaskDisabled
	}
	return tm.orderTask.RunOnce(ctx)
}

// TriggerTokenCheck 立即执行一次 Token 检查
func (tm *TaskManager) TriggerTokenCheck(ctx context.Context) error {
	if tm.tokenTask == nil {
		return ErrTaskDisabled
	}
	return tm.tokenTask.RunOnce(ctx)
}
