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

// DefaultProductSpec 每小时整点刷新商品目录
const DefaultProductSpec = "0 0 * * * *"

// CatalogLoader 商品目录
type CatalogLoader interface {
	Products(ctx context.Context, refresh bool) (*service.Catalog, error)
}

// ==================== ProductSyncTask 商品目录刷新任务 ====================

// ProductSyncTask 定时强制刷新商品目录缓存
type ProductSyncTask struct {
	catalog CatalogLoader
	cron    *cron.Cron
	spec    string
	timeout time.Duration
	log     *zap.Logger
}

// NewProductSyncTask 创建商品目录刷新任务
func NewProductSyncTask(catalog CatalogLoader, spec string, logger *zap.Logger) *ProductSyncTask {
	if spec == "" {
		spec = DefaultProductSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductSyncTask{
		catalog: catalog,
		cron:    cron.New(cron.WithSeconds()),
		spec:    spec,
		timeout: 10 * time.Minute,
		log:     logger.With(zap.String("task", "product_sync")),
	}
}

// Start 注册定时任务
func (t *ProductSyncTask) Start() error {
	if _, err := t.cron.AddFunc(t.spec, t.run); err != nil {
		return fmt.Errorf("商品目录定时任务启动失败: %w", err)
	}
	t.cron.Start()
	t.log.Info("[ProductSyncTask] 已启动", zap.String("spec", t.spec))
	return nil
}

// Stop 停止任务
func (t *ProductSyncTask) Stop() {
	<-t.cron.Stop().Done()
	t.log.Info("[ProductSyncTask] 已停止")
}

func (t *ProductSyncTask) run() {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	_ = t.RunOnce(ctx)
}

// RunOnce 强制刷新一次；未授权时静默跳过
func (t *ProductSyncTask) RunOnce(ctx context.Context) error {
	c, err := t.catalog.Products(ctx, true)
	if err != nil {
		if errors.Is(err, service.ErrReauthRequired) {
			t.log.Debug("[ProductSyncTask] 未授权，跳过")
			return nil
		}
		t.log.Error("[ProductSyncTask] 刷新失败", zap.Error(err))
		return err
	}
	t.log.Info("[ProductSyncTask] 商品目录已刷新",
		zap.Int("products", len(c.Products)),
		zap.Bool("partial", c.Partial))
	return nil
}
