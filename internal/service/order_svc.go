package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"shopee_order_v1/internal/model"
	"shopee_order_v1/internal/repository"
	"shopee_order_v1/pkg/shopee"
	"shopee_order_v1/pkg/utils"
)

// ErrSyncFailed 所有窗口均失败，没有任何可用数据
var ErrSyncFailed = errors.New("order sync failed")

// ==================== 数据结构 ====================

// OrderSnapshot 一次同步的结果 (按 create_time 倒序)
type OrderSnapshot struct {
	Status   string               `json:"status"`
	Details  []shopee.OrderDetail `json:"details"`
	Listed   int                  `json:"listed"`
	SyncedAt time.Time            `json:"synced_at"`
	Failures []FetchFailure       `json:"failures,omitempty"`
}

// Partial 存在被放弃的窗口或分块
func (s *OrderSnapshot) Partial() bool {
	return len(s.Failures) > 0
}

// BoardQuery 看板查询参数
type BoardQuery struct {
	Status  string
	Refresh bool
}

// Board 订单看板
type Board struct {
	Status   string           `json:"status"`
	Rows     []model.OrderRow `json:"rows"`
	Orders   int              `json:"orders"`
	SyncedAt time.Time        `json:"synced_at"`
	Partial  bool             `json:"partial"`
	Failures []FetchFailure   `json:"failures,omitempty"`
}

// ==================== OrderService ====================

// OrderService 订单同步 + 标注合并
type OrderService struct {
	orders      *OrderFetcher
	details     *DetailFetcher
	annotations repository.AnnotationRepository
	cache       *utils.TTLCache[*OrderSnapshot]
	group       singleflight.Group
	status      string
	log         *zap.Logger
	now         func() time.Time
}

// NewOrderService 创建订单服务；cacheTTL 为快照缓存时间
func NewOrderService(
	orders *OrderFetcher,
	details *DetailFetcher,
	annotations repository.AnnotationRepository,
	defaultStatus string,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultStatus == "" {
		defaultStatus = DefaultFetchConfig().OrderStatus
	}
	return &OrderService{
		orders:      orders,
		details:     details,
		annotations: annotations,
		cache:       utils.NewTTLCache[*OrderSnapshot](cacheTTL),
		status:      defaultStatus,
		log:         logger.With(zap.String("component", "order")),
		now:         time.Now,
	}
}

// SetClock 替换时间源 (测试用，同时作用于缓存)
func (s *OrderService) SetClock(now func() time.Time) {
	s.now = now
	s.cache.SetClock(now)
}

// Sync 拉取订单列表与详情并刷新缓存；同一状态的并发调用合并为一次
func (s *OrderService) Sync(ctx context.Context, status string) (*OrderSnapshot, error) {
	if status == "" {
		status = s.status
	}

	snap, shared, err := sharedDo(ctx, &s.group, status, s.orders.cfg.Timeout,
		func(runCtx context.Context) (*OrderSnapshot, error) {
			return s.sync(runCtx, status)
		})
	if err != nil {
		return nil, err
	}
	if shared {
		s.log.Debug("[Order] 合并并发同步", zap.String("status", status))
	}
	return snap, nil
}

func (s *OrderService) sync(ctx context.Context, status string) (*OrderSnapshot, error) {
	start := s.now()

	list, err := s.orders.FetchOrders(ctx, status)
	if err != nil {
		return nil, err
	}
	if !list.Succeeded() {
		msg := "no windows"
		if len(list.Failures) > 0 {
			msg = list.Failures[0].Error()
		}
		return nil, fmt.Errorf("%w: %s", ErrSyncFailed, msg)
	}

	sns := uniqueOrderSNs(list.Orders)
	det, err := s.details.FetchDetails(ctx, sns)
	if err != nil {
		return nil, err
	}

	details := det.Details
	sort.SliceStable(details, func(i, j int) bool {
		return details[i].CreateTime > details[j].CreateTime
	})

	snap := &OrderSnapshot{
		Status:   status,
		Details:  details,
		Listed:   len(sns),
		SyncedAt: s.now(),
		Failures: append(append([]FetchFailure(nil), list.Failures...), det.Failures...),
	}
	s.cache.Set(status, snap)

	if snap.Partial() {
		s.log.Warn("[Order] 同步完成但存在缺失",
			zap.String("status", status),
			zap.Int("listed", snap.Listed),
			zap.Int("details", len(details)),
			zap.Int("failures", len(snap.Failures)))
	} else {
		s.log.Info("[Order] 同步完成",
			zap.String("status", status),
			zap.Int("orders", len(details)),
			zap.Duration("elapsed", s.now().Sub(start)))
	}
	return snap, nil
}

// Snapshot 返回缓存中的快照 (可能不存在)
func (s *OrderService) Snapshot(status string) (*OrderSnapshot, bool) {
	if status == "" {
		status = s.status
	}
	return s.cache.Get(status)
}

// Board 返回订单看板；缓存过期或 Refresh 时重新同步
func (s *OrderService) Board(ctx context.Context, q BoardQuery) (*Board, error) {
	status := q.Status
	if status == "" {
		status = s.status
	}

	snap, ok := s.cache.Get(status)
	if !ok || q.Refresh {
		var err error
		if snap, err = s.Sync(ctx, status); err != nil {
			return nil, err
		}
	}

	sns := make([]string, 0, len(snap.Details))
	for _, d := range snap.Details {
		sns = append(sns, d.OrderSN)
	}
	anns, err := s.annotations.GetByOrderSNs(ctx, sns)
	if err != nil {
		return nil, fmt.Errorf("读取标注失败: %w", err)
	}

	return &Board{
		Status:   status,
		Rows:     BuildRows(snap.Details, anns),
		Orders:   len(snap.Details),
		SyncedAt: snap.SyncedAt,
		Partial:  snap.Partial(),
		Failures: snap.Failures,
	}, nil
}

// Annotations 全部标注 (含旧版两段键记录)
func (s *OrderService) Annotations(ctx context.Context) ([]model.OrderAnnotation, error) {
	return s.annotations.GetAll(ctx)
}

// SaveAnnotation 保存单条标注
func (s *OrderService) SaveAnnotation(ctx context.Context, a *model.OrderAnnotation) error {
	if err := s.annotations.UpsertOne(ctx, a); err != nil {
		return err
	}
	s.log.Debug("[Order] 标注已保存",
		zap.String("order_sn", a.OrderSN),
		zap.String("product", a.ProductName),
		zap.String("spec", a.ItemSpec))
	return nil
}

// SaveAnnotations 批量保存标注，返回实际写入的条数 (重复键只计一次)
func (s *OrderService) SaveAnnotations(ctx context.Context, list []model.OrderAnnotation) (int, error) {
	n, err := s.annotations.UpsertBatch(ctx, list)
	if err != nil {
		return 0, err
	}
	s.log.Info("[Order] 批量保存标注", zap.Int("received", len(list)), zap.Int("saved", n))
	return n, nil
}

// ==================== 合并 ====================

// BuildRows 详情展开为商品行并合并标注
// 优先按 (order_sn, 商品名, 规格) 匹配，未命中时回退到旧版 (order_sn, 商品名) 记录
func BuildRows(details []shopee.OrderDetail, anns []model.OrderAnnotation) []model.OrderRow {
	index := make(map[model.AnnotationKey]*model.OrderAnnotation, len(anns))
	for i := range anns {
		index[anns[i].Key()] = &anns[i]
	}

	rows := make([]model.OrderRow, 0, len(details))
	for _, d := range details {
		for _, item := range d.ItemList {
			sku := item.ItemSKU
			if sku == "" {
				sku = item.ModelSKU
			}
			row := model.OrderRow{
				OrderSN:     d.OrderSN,
				OrderStatus: d.OrderStatus,
				CreateTime:  d.CreateTime,
				ShipByDate:  d.ShipByDate,
				ProductName: item.ItemName,
				ItemSKU:     sku,
				ItemSpec:    item.ModelName,
				Quantity:    item.ModelQuantityPurchased,
				ImageURL:    item.ImageInfo.ImageURL,
			}

			key := row.AnnotationKey()
			a, ok := index[key]
			if !ok {
				a, ok = index[key.Legacy()]
			}
			if ok {
				row.Received = a.Received
				row.MissingCount = a.MissingCount
				row.Note = a.Note
				row.Tag = a.Tag
				row.ReferenceImageURL = a.ReferenceImageURL
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func uniqueOrderSNs(list []shopee.OrderSummary) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, o := range list {
		if o.OrderSN == "" {
			continue
		}
		if _, ok := seen[o.OrderSN]; ok {
			continue
		}
		seen[o.OrderSN] = struct{}{}
		out = append(out, o.OrderSN)
	}
	return out
}
