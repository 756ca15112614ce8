package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"shopee_order_v1/internal/model"
	"shopee_order_v1/pkg/shopee"
	"shopee_order_v1/pkg/utils"
)

const catalogCacheKey = "catalog"

// ItemAPI 商品相关 Shopee 接口
type ItemAPI interface {
	GetItemList(ctx context.Context, cred shopee.ShopCredential, req shopee.ItemListReq) (*shopee.ItemListResp, error)
	GetItemBaseInfo(ctx context.Context, cred shopee.ShopCredential, itemIDs []int64) ([]shopee.ItemBaseInfo, error)
}

// Catalog 商品目录快照
type Catalog struct {
	Products []model.Product `json:"products"`
	Total    int             `json:"total"`
	SyncedAt time.Time       `json:"synced_at"`
	Partial  bool            `json:"partial"`
	Failures []FetchFailure  `json:"failures,omitempty"`
}

// CatalogService 商品目录 (offset 分页 + 分块基础信息)
type CatalogService struct {
	fetcherBase
	api   ItemAPI
	cache *utils.TTLCache[*Catalog]
	group singleflight.Group
}

// NewCatalogService 创建商品目录服务；分块大小与间隔沿用 FetchConfig 的 ChunkSize / ChunkDelay
func NewCatalogService(api ItemAPI, tokens TokenProvider, cfg FetchConfig, cacheTTL time.Duration, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		fetcherBase: newFetcherBase(tokens, cfg, logger, "catalog"),
		api:         api,
		cache:       utils.NewTTLCache[*Catalog](cacheTTL),
	}
}

// SetClock 替换时间源 (测试用，同时作用于缓存)
func (s *CatalogService) SetClock(now func() time.Time) {
	s.now = now
	s.cache.SetClock(now)
}

// Products 返回商品目录；缓存有效且未要求刷新时直接返回
func (s *CatalogService) Products(ctx context.Context, refresh bool) (*Catalog, error) {
	if !refresh {
		if c, ok := s.cache.Get(catalogCacheKey); ok {
			return c, nil
		}
	}

	c, _, err := sharedDo(ctx, &s.group, catalogCacheKey, s.cfg.Timeout, s.load)
	return c, err
}

func (s *CatalogService) load(ctx context.Context) (*Catalog, error) {
	cred, err := s.credential(ctx)
	if err != nil {
		return nil, err
	}

	ids, listFail, err := s.listItemIDs(ctx, cred)
	if err != nil {
		return nil, err
	}

	out, err := fetchChunks(ctx, chunkJob[int64, shopee.ItemBaseInfo]{
		keys:   ids,
		size:   s.cfg.ChunkSize,
		delay:  s.cfg.ChunkDelay,
		sleep:  s.sleep,
		policy: s.retryPolicy(),
		log:    s.log,
		fetch: func(ctx context.Context, chunk []int64) ([]shopee.ItemBaseInfo, error) {
			return s.api.GetItemBaseInfo(ctx, cred, chunk)
		},
	})
	if err != nil {
		return nil, err
	}

	catalog := &Catalog{
		Products: make([]model.Product, 0, len(out.items)),
		Total:    len(ids),
		SyncedAt: s.now(),
	}
	for _, info := range out.items {
		catalog.Products = append(catalog.Products, toProduct(info))
	}
	if listFail != nil {
		catalog.Failures = append(catalog.Failures, *listFail)
	}
	catalog.Failures = append(catalog.Failures, out.failures...)
	catalog.Partial = len(catalog.Failures) > 0

	if len(ids) == 0 && listFail != nil {
		return nil, fmt.Errorf("%w: %s", ErrSyncFailed, listFail.Error())
	}

	s.cache.Set(catalogCacheKey, catalog)
	s.log.Info("[Catalog] 商品目录已刷新",
		zap.Int("items", len(ids)),
		zap.Int("products", len(catalog.Products)),
		zap.Int("failures", len(catalog.Failures)))
	return catalog, nil
}

// listItemIDs offset 分页拉取全部商品 ID；某页重试耗尽时停止翻页并返回已取得的部分
func (s *CatalogService) listItemIDs(ctx context.Context, cred shopee.ShopCredential) ([]int64, *FetchFailure, error) {
	policy := s.retryPolicy()
	ids := make([]int64, 0)
	offset := 0

	for page := 0; ; page++ {
		if page > 0 {
			if err := s.sleep(ctx, s.cfg.PageDelay); err != nil {
				return ids, nil, err
			}
		}

		req := shopee.ItemListReq{Offset: offset, PageSize: shopee.MaxItemPageSize}
		var resp *shopee.ItemListResp
		attempts, err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
			r, err := s.api.GetItemList(ctx, cred, req)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ids, nil, ctxErr
			}
			fail := newFailure(UnitPage, page, attempts, err)
			s.log.Warn("[Catalog] 放弃商品列表分页",
				zap.Int("page", page),
				zap.Int("offset", offset),
				zap.String("message", fail.Message))
			return ids, &fail, nil
		}

		for _, it := range resp.Item {
			ids = append(ids, it.ItemID)
		}
		if !resp.HasNextPage || resp.NextOffset <= offset {
			return ids, nil, nil
		}
		offset = resp.NextOffset
	}
}

func toProduct(info shopee.ItemBaseInfo) model.Product {
	p := model.Product{
		ItemID:     info.ItemID,
		Name:       info.ItemName,
		SKU:        info.ItemSKU,
		Status:     info.ItemStatus,
		CategoryID: info.CategoryID,
		HasModel:   info.HasModel,
		UpdateTime: info.UpdateTime,
	}
	if len(info.Image.ImageURLList) > 0 {
		p.ImageURL = info.Image.ImageURLList[0]
	}
	return p
}
