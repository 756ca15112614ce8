package shopee

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"shopee_order_v1/pkg/net"
)

// DefaultBaseURL Shopee 开放平台正式环境
const DefaultBaseURL = "https://partner.shopeemobile.com"

// maxErrorBody 错误日志中保留的响应体长度
const maxErrorBody = 512

// ClientConfig Shopee 客户端配置 (构造时注入，不使用全局凭证)
type ClientConfig struct {
	BaseURL     string
	PartnerID   int64
	PartnerKey  string
	Timeout     time.Duration
	ProxyURL    string
	Debug       bool
	MinInterval time.Duration // 相邻请求最小间隔，0 不限制
}

// ShopCredential 店铺级接口所需凭证
type ShopCredential struct {
	ShopID      int64
	AccessToken string
}

// Client Shopee 开放平台 v2 客户端
// 职责：签名、公共参数、响应外壳解析、错误归类；不做重试
type Client struct {
	http    *resty.Client
	signer  *Signer
	pacer   *net.Pacer
	baseURL string
	log     *zap.Logger
	now     func() time.Time
}

// NewClient 创建客户端
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	if cfg.PartnerID <= 0 || cfg.PartnerKey == "" {
		return nil, errors.New("shopee: partner_id and partner_key are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		http: net.NewRestyClient(net.ClientOptions{
			BaseURL:  baseURL,
			Timeout:  cfg.Timeout,
			ProxyURL: cfg.ProxyURL,
			Debug:    cfg.Debug,
			Logger:   logger,
		}),
		signer:  NewSigner(cfg.PartnerID, cfg.PartnerKey),
		pacer:   net.NewPacer(cfg.MinInterval),
		baseURL: baseURL,
		log:     logger.With(zap.String("component", "shopee_client")),
		now:     time.Now,
	}, nil
}

// SetClock 替换时间源 (测试用)
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

// ==================== Auth ====================

// AuthURL 生成店铺授权跳转链接
func (c *Client) AuthURL(redirect string) (string, error) {
	ts := c.now().Unix()
	sign, err := c.signer.Sign(PathAuthPartner, ts, ScopePublic, "", 0)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("partner_id", strconv.FormatInt(c.signer.PartnerID(), 10))
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	q.Set("sign", sign)
	q.Set("redirect", redirect)
	return c.baseURL + PathAuthPartner + "?" + q.Encode(), nil
}

// GetAccessToken 用授权码换取 Token
func (c *Client) GetAccessToken(ctx context.Context, code string, shopID int64) (*TokenResp, error) {
	if code == "" {
		return nil, errors.New("shopee: authorization code is required")
	}

	body, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   PathTokenGet,
		scope:  ScopePublic,
		body: tokenGetReq{
			Code:      code,
			ShopID:    shopID,
			PartnerID: c.signer.PartnerID(),
		},
	})
	if err != nil {
		return nil, err
	}
	return decodeToken(body, shopID)
}

// RefreshAccessToken 用 refresh_token 刷新 Token
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string, shopID int64) (*TokenResp, error) {
	body, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   PathAccessTokenGet,
		scope:  ScopePublic,
		body: accessTokenGetReq{
			RefreshToken: refreshToken,
			ShopID:       shopID,
			PartnerID:    c.signer.PartnerID(),
		},
	})
	if err != nil {
		return nil, err
	}
	return decodeToken(body, shopID)
}

func decodeToken(body []byte, shopID int64) (*TokenResp, error) {
	var resp TokenResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("shopee: decode token response: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("shopee: access token missing in response (request_id=%s)", resp.RequestID)
	}
	if resp.ShopID == 0 {
		resp.ShopID = shopID
	}
	return &resp, nil
}

// ==================== Order ====================

// GetOrderList 拉取一页订单列表
func (c *Client) GetOrderList(ctx context.Context, cred ShopCredential, req OrderListReq) (*OrderListResp, error) {
	body, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   PathOrderList,
		scope:  ScopeShop,
		cred:   cred,
		query:  req.values(),
	})
	if err != nil {
		return nil, err
	}

	var resp OrderListResp
	if err := decodeResponse(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetOrderDetail 批量获取订单详情，单次最多 MaxDetailBatch 个 order_sn
func (c *Client) GetOrderDetail(ctx context.Context, cred ShopCredential, orderSNs []string) ([]OrderDetail, error) {
	if len(orderSNs) == 0 {
		return nil, nil
	}
	if len(orderSNs) > MaxDetailBatch {
		return nil, fmt.Errorf("shopee: %d order_sn exceeds batch limit %d", len(orderSNs), MaxDetailBatch)
	}

	body, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   PathOrderDetail,
		scope:  ScopeShop,
		cred:   cred,
		query:  orderDetailValues(orderSNs),
	})
	if err != nil {
		return nil, err
	}

	var resp orderDetailResp
	if err := decodeResponse(body, &resp); err != nil {
		return nil, err
	}
	return resp.OrderList, nil
}

// ==================== Product ====================

// GetItemList 按 offset 分页拉取商品 ID
func (c *Client) GetItemList(ctx context.Context, cred ShopCredential, req ItemListReq) (*ItemListResp, error) {
	body, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   PathItemList,
		scope:  ScopeShop,
		cred:   cred,
		query:  req.values(),
	})
	if err != nil {
		return nil, err
	}

	var resp ItemListResp
	if err := decodeResponse(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetItemBaseInfo 批量获取商品基础信息，单次最多 MaxDetailBatch 个 item_id
func (c *Client) GetItemBaseInfo(ctx context.Context, cred ShopCredential, itemIDs []int64) ([]ItemBaseInfo, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	if len(itemIDs) > MaxDetailBatch {
		return nil, fmt.Errorf("shopee: %d item_id exceeds batch limit %d", len(itemIDs), MaxDetailBatch)
	}

	body, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   PathItemBaseInfo,
		scope:  ScopeShop,
		cred:   cred,
		query:  itemBaseInfoValues(itemIDs),
	})
	if err != nil {
		return nil, err
	}

	var resp itemBaseInfoResp
	if err := decodeResponse(body, &resp); err != nil {
		return nil, err
	}
	return resp.ItemList, nil
}

// ==================== 底层请求 ====================

type request struct {
	method string
	path   string
	scope  Scope
	cred   ShopCredential
	query  url.Values
	body   interface{}
}

// do 签名并发送请求，返回已通过外壳校验的原始响应体
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	ts := c.now().Unix()
	sign, err := c.signer.Sign(r.path, ts, r.scope, r.cred.AccessToken, r.cred.ShopID)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	for k, vs := range r.query {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("partner_id", strconv.FormatInt(c.signer.PartnerID(), 10))
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	q.Set("sign", sign)
	if r.scope == ScopeShop {
		q.Set("access_token", r.cred.AccessToken)
		q.Set("shop_id", strconv.FormatInt(r.cred.ShopID, 10))
	}

	req := c.http.R().SetContext(ctx).SetQueryParamsFromValues(q)
	if r.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(r.body)
	}

	start := time.Now()
	resp, err := req.Execute(r.method, r.path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.log.Warn("[Shopee] 网络错误", zap.String("path", r.path), zap.Error(err))
		return nil, &TransientError{Err: err}
	}

	status := resp.StatusCode()
	body := resp.Body()
	c.log.Debug("[Shopee] 请求完成",
		zap.String("path", r.path),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(start)))

	var env Envelope
	decodeErr := json.Unmarshal(body, &env)

	if status != http.StatusOK {
		// 4xx 时平台通常仍返回外壳，优先使用其中的业务错误码
		if decodeErr == nil && env.Error != "" && status < http.StatusInternalServerError && status != http.StatusTooManyRequests {
			return nil, &APIError{StatusCode: status, Code: env.Error, Message: env.Message, RequestID: env.RequestID}
		}
		return nil, classifyStatus(status, truncate(string(body), maxErrorBody))
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("shopee: decode %s response: %w", r.path, decodeErr)
	}
	if env.Error != "" {
		return nil, &APIError{StatusCode: status, Code: env.Error, Message: env.Message, RequestID: env.RequestID}
	}
	return body, nil
}

// decodeResponse 解析外壳中的 response 对象
func decodeResponse(body []byte, out interface{}) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("shopee: decode envelope: %w", err)
	}
	if len(env.Response) == 0 {
		return fmt.Errorf("shopee: unexpected response structure (request_id=%s)", env.RequestID)
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		return fmt.Errorf("shopee: decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
