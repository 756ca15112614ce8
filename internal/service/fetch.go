package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"shopee_order_v1/internal/model"
	"shopee_order_v1/pkg/net"
	"shopee_order_v1/pkg/shopee"
)

// OrderAPI 订单相关 Shopee 接口
type OrderAPI interface {
	GetOrderList(ctx context.Context, cred shopee.ShopCredential, req shopee.OrderListReq) (*shopee.OrderListResp, error)
	GetOrderDetail(ctx context.Context, cred shopee.ShopCredential, orderSNs []string) ([]shopee.OrderDetail, error)
}

// FetchConfig 拉取参数
type FetchConfig struct {
	TotalDays   int
	WindowDays  int
	PageSize    int
	OrderStatus string
	MaxAttempts int
	RetryDelay  time.Duration
	PageDelay   time.Duration
	ChunkSize   int
	ChunkDelay  time.Duration
	Timeout     time.Duration // 单次同步 (列表 + 详情) 的总时限
}

// DefaultFetchConfig 与平台限制一致的默认值
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		TotalDays:   30,
		WindowDays:  shopee.MaxOrderWindowDays,
		PageSize:    shopee.MaxOrderPageSize,
		OrderStatus: "READY_TO_SHIP",
		MaxAttempts: 3,
		RetryDelay:  time.Second,
		PageDelay:   500 * time.Millisecond,
		ChunkSize:   shopee.MaxDetailBatch,
		ChunkDelay:  100 * time.Millisecond,
		Timeout:     10 * time.Minute,
	}
}

func (c FetchConfig) withDefaults() FetchConfig {
	def := DefaultFetchConfig()
	if c.TotalDays <= 0 {
		c.TotalDays = def.TotalDays
	}
	if c.WindowDays <= 0 || c.WindowDays > shopee.MaxOrderWindowDays {
		c.WindowDays = def.WindowDays
	}
	if c.PageSize <= 0 || c.PageSize > shopee.MaxOrderPageSize {
		c.PageSize = def.PageSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.ChunkSize <= 0 || c.ChunkSize > shopee.MaxDetailBatch {
		c.ChunkSize = def.ChunkSize
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// ==================== 失败记录 ====================

// 失败单元类型
const (
	UnitWindow = "window"
	UnitChunk  = "chunk"
	UnitPage   = "page"
)

// FetchFailure 被放弃的工作单元 (窗口 / 分块 / 列表页)
type FetchFailure struct {
	Unit     string             `json:"unit"`
	Index    int                `json:"index"`
	Window   *model.OrderWindow `json:"window,omitempty"`
	Size     int                `json:"size,omitempty"`
	Attempts int                `json:"attempts"`
	Message  string             `json:"message"`
	Err      error              `json:"-"`
}

func (f FetchFailure) Error() string {
	if f.Window != nil {
		return fmt.Sprintf("%s %d [%s, %s] abandoned after %d attempts: %s",
			f.Unit, f.Index, f.Window.From.Format(time.RFC3339), f.Window.To.Format(time.RFC3339), f.Attempts, f.Message)
	}
	return fmt.Sprintf("%s %d (size %d) abandoned after %d attempts: %s", f.Unit, f.Index, f.Size, f.Attempts, f.Message)
}

func (f FetchFailure) Unwrap() error {
	return f.Err
}

func newFailure(unit string, index, attempts int, err error) FetchFailure {
	return FetchFailure{
		Unit:     unit,
		Index:    index,
		Attempts: attempts,
		Message:  shopee.ProviderMessage(err),
		Err:      err,
	}
}

// ==================== 窗口划分 ====================

// BuildWindows 从 now 向前划分 [now-totalDays, now]，最近的窗口在前，最后一个窗口可能较短
func BuildWindows(now time.Time, totalDays, windowDays int) []model.OrderWindow {
	if totalDays <= 0 || windowDays <= 0 {
		return nil
	}

	start := now.Add(-time.Duration(totalDays) * 24 * time.Hour)
	step := time.Duration(windowDays) * 24 * time.Hour

	windows := make([]model.OrderWindow, 0, (totalDays+windowDays-1)/windowDays)
	for to := now; to.After(start); {
		from := to.Add(-step)
		if from.Before(start) {
			from = start
		}
		windows = append(windows, model.OrderWindow{From: from, To: to})
		to = from
	}
	return windows
}

// ==================== 公共部分 ====================

type fetcherBase struct {
	tokens TokenProvider
	cfg    FetchConfig
	log    *zap.Logger
	sleep  net.SleepFunc
	now    func() time.Time
}

func newFetcherBase(tokens TokenProvider, cfg FetchConfig, logger *zap.Logger, component string) fetcherBase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return fetcherBase{
		tokens: tokens,
		cfg:    cfg.withDefaults(),
		log:    logger.With(zap.String("component", component)),
		sleep:  net.SleepContext,
		now:    time.Now,
	}
}

// SetSleep 替换等待函数 (测试用，同时作用于限流间隔与重试退避)
func (b *fetcherBase) SetSleep(sleep net.SleepFunc) {
	b.sleep = sleep
}

// SetClock 替换时间源 (测试用)
func (b *fetcherBase) SetClock(now func() time.Time) {
	b.now = now
}

func (b *fetcherBase) retryPolicy() net.RetryPolicy {
	return net.RetryPolicy{
		MaxAttempts: b.cfg.MaxAttempts,
		Delay:       b.cfg.RetryDelay,
		Retryable:   shopee.IsRetryable,
		Sleep:       b.sleep,
	}
}

func (b *fetcherBase) credential(ctx context.Context) (shopee.ShopCredential, error) {
	tok, err := b.tokens.GetValidToken(ctx)
	if err != nil {
		return shopee.ShopCredential{}, err
	}
	return shopee.ShopCredential{ShopID: tok.ShopID, AccessToken: tok.AccessToken}, nil
}

// ==================== 并发合并 ====================

// sharedDo 合并同 key 的并发任务
// 任务运行在脱离调用方取消的上下文中 (受 timeout 限制)，单个调用方断开不影响其他等待者与缓存写入
func sharedDo[T any](ctx context.Context, g *singleflight.Group, key string, timeout time.Duration, fn func(context.Context) (T, error)) (T, bool, error) {
	ch := g.DoChan(key, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return fn(runCtx)
	})

	var zero T
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Shared, res.Err
		}
		v, _ := res.Val.(T)
		return v, res.Shared, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

// ==================== WindowedOrderFetcher ====================

// OrderListResult 订单列表拉取结果
type OrderListResult struct {
	Orders   []shopee.OrderSummary `json:"orders"`
	Windows  int                   `json:"windows"`
	Pages    int                   `json:"pages"`    // 成功的页数
	Requests int                   `json:"requests"` // 实际发出的请求数 (含重试)
	Failures []FetchFailure        `json:"failures,omitempty"`
}

// Succeeded 至少一页成功；用于区分 "0 条订单" 与 "全部失败"
func (r *OrderListResult) Succeeded() bool {
	return r.Pages > 0
}

// Partial 有数据但存在被放弃的窗口
func (r *OrderListResult) Partial() bool {
	return r.Succeeded() && len(r.Failures) > 0
}

// OrderFetcher 按时间窗口 + 游标分页拉取订单列表
type OrderFetcher struct {
	fetcherBase
	api OrderAPI
}

// NewOrderFetcher 创建订单列表拉取器
func NewOrderFetcher(api OrderAPI, tokens TokenProvider, cfg FetchConfig, logger *zap.Logger) *OrderFetcher {
	return &OrderFetcher{fetcherBase: newFetcherBase(tokens, cfg, logger, "order_fetcher"), api: api}
}

// FetchOrders 拉取最近 TotalDays 天内指定状态的订单
// 单个窗口重试耗尽或遇到业务错误时放弃该窗口并继续下一个；只有 ctx 结束或需要重新授权时返回 error
func (f *OrderFetcher) FetchOrders(ctx context.Context, status string) (*OrderListResult, error) {
	cred, err := f.credential(ctx)
	if err != nil {
		return nil, err
	}
	if status == "" {
		status = f.cfg.OrderStatus
	}

	windows := BuildWindows(f.now(), f.cfg.TotalDays, f.cfg.WindowDays)
	res := &OrderListResult{Orders: []shopee.OrderSummary{}, Windows: len(windows)}
	policy := f.retryPolicy()
	first := true

	for i := range windows {
		w := windows[i]
		cursor := ""

		for {
			if !first {
				if err := f.sleep(ctx, f.cfg.PageDelay); err != nil {
					return res, err
				}
			}
			first = false

			req := shopee.OrderListReq{
				TimeRangeField: "create_time",
				TimeFrom:       w.From.Unix(),
				TimeTo:         w.To.Unix(),
				PageSize:       f.cfg.PageSize,
				Cursor:         cursor,
				OrderStatus:    status,
			}

			var page *shopee.OrderListResp
			attempts, err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
				res.Requests++
				p, err := f.api.GetOrderList(ctx, cred, req)
				if err != nil {
					if shopee.IsRetryable(err) {
						f.log.Warn("[Order] 拉取列表失败，准备重试",
							zap.Int("window", i), zap.Int("attempt", attempt), zap.Error(err))
					}
					return err
				}
				page = p
				return nil
			})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return res, ctxErr
				}
				fail := newFailure(UnitWindow, i, attempts, err)
				fail.Window = &w
				res.Failures = append(res.Failures, fail)
				f.log.Warn("[Order] 放弃窗口",
					zap.Int("window", i),
					zap.Time("from", w.From),
					zap.Time("to", w.To),
					zap.Int("attempts", attempts),
					zap.Int("pages_done", res.Pages),
					zap.String("message", fail.Message))
				break
			}

			res.Pages++
			res.Orders = append(res.Orders, page.OrderList...)

			if !page.More || page.NextCursor == "" {
				break
			}
			cursor = page.NextCursor
		}
	}

	f.log.Info("[Order] 列表拉取完成",
		zap.Int("orders", len(res.Orders)),
		zap.Int("windows", res.Windows),
		zap.Int("pages", res.Pages),
		zap.Int("failed_windows", len(res.Failures)))
	return res, nil
}

// ==================== BulkDetailFetcher ====================

// DetailResult 订单详情拉取结果
type DetailResult struct {
	Details  []shopee.OrderDetail `json:"details"`
	Chunks   int                  `json:"chunks"`
	Requests int                  `json:"requests"`
	Failures []FetchFailure       `json:"failures,omitempty"`
}

// Partial 存在失败的分块
func (r *DetailResult) Partial() bool {
	return len(r.Failures) > 0
}

// DetailFetcher 按批次拉取订单详情
type DetailFetcher struct {
	fetcherBase
	api OrderAPI
}

// NewDetailFetcher 创建订单详情拉取器
func NewDetailFetcher(api OrderAPI, tokens TokenProvider, cfg FetchConfig, logger *zap.Logger) *DetailFetcher {
	return &DetailFetcher{fetcherBase: newFetcherBase(tokens, cfg, logger, "detail_fetcher"), api: api}
}

// FetchDetails 拉取 orderSNs 的详情；失败的分块记录后跳过，已取得的结果保留
// 返回顺序不保证与 orderSNs 一致
func (f *DetailFetcher) FetchDetails(ctx context.Context, orderSNs []string) (*DetailResult, error) {
	res := &DetailResult{Details: []shopee.OrderDetail{}}
	if len(orderSNs) == 0 {
		return res, nil
	}

	cred, err := f.credential(ctx)
	if err != nil {
		return nil, err
	}

	out, err := fetchChunks(ctx, chunkJob[string, shopee.OrderDetail]{
		keys:   orderSNs,
		size:   f.cfg.ChunkSize,
		delay:  f.cfg.ChunkDelay,
		sleep:  f.sleep,
		policy: f.retryPolicy(),
		log:    f.log,
		fetch: func(ctx context.Context, chunk []string) ([]shopee.OrderDetail, error) {
			res.Requests++
			return f.api.GetOrderDetail(ctx, cred, chunk)
		},
	})
	res.Details = append(res.Details, out.items...)
	res.Chunks = out.chunks
	res.Failures = out.failures
	if err != nil {
		return res, err
	}

	f.log.Info("[Order] 详情拉取完成",
		zap.Int("requested", len(orderSNs)),
		zap.Int("details", len(res.Details)),
		zap.Int("chunks", res.Chunks),
		zap.Int("failed_chunks", len(res.Failures)))
	return res, nil
}

// ==================== 分块循环 ====================

type chunkJob[K any, V any] struct {
	keys   []K
	size   int
	delay  time.Duration
	sleep  net.SleepFunc
	policy net.RetryPolicy
	log    *zap.Logger
	fetch  func(ctx context.Context, chunk []K) ([]V, error)
}

type chunkOutput[V any] struct {
	items    []V
	chunks   int
	failures []FetchFailure
}

// fetchChunks 按 size 切分 keys 逐块拉取，分块之间固定间隔 delay
// 单块失败 (重试耗尽或不可重试) 记录后继续；ctx 结束时返回已取得的部分
func fetchChunks[K any, V any](ctx context.Context, job chunkJob[K, V]) (chunkOutput[V], error) {
	var out chunkOutput[V]

	for start, idx := 0, 0; start < len(job.keys); start, idx = start+job.size, idx+1 {
		end := start + job.size
		if end > len(job.keys) {
			end = len(job.keys)
		}
		chunk := job.keys[start:end]

		if idx > 0 {
			if err := job.sleep(ctx, job.delay); err != nil {
				return out, err
			}
		}
		out.chunks++

		var items []V
		attempts, err := job.policy.Do(ctx, func(ctx context.Context, attempt int) error {
			got, err := job.fetch(ctx, chunk)
			if err != nil {
				return err
			}
			items = got
			return nil
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			fail := newFailure(UnitChunk, idx, attempts, err)
			fail.Size = len(chunk)
			out.failures = append(out.failures, fail)
			job.log.Warn("[Chunk] 放弃分块",
				zap.Int("chunk", idx),
				zap.Int("size", len(chunk)),
				zap.Int("attempts", attempts),
				zap.String("message", fail.Message))
			continue
		}
		out.items = append(out.items, items...)
	}
	return out, nil
}
