package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"shopee_order_v1/internal/model"
	"shopee_order_v1/internal/repository"
	"shopee_order_v1/pkg/shopee"
)

// 业务常量
const (
	DefaultRefreshThreshold = 300 * time.Second
	// DefaultRefreshTTL 平台未返回 refresh_token 有效期时使用 (1 年)
	DefaultRefreshTTL = 31536000 * time.Second
)

var (
	// ErrReauthRequired 需要商家重新走授权流程
	ErrReauthRequired = errors.New("re-authorization required")
	// ErrMissingParam 必填参数缺失
	ErrMissingParam = errors.New("missing required parameter")
)

// TokenAPI Shopee 授权相关接口
type TokenAPI interface {
	AuthURL(redirect string) (string, error)
	GetAccessToken(ctx context.Context, code string, shopID int64) (*shopee.TokenResp, error)
	RefreshAccessToken(ctx context.Context, refreshToken string, shopID int64) (*shopee.TokenResp, error)
}

// TokenProvider 受保护操作获取 Token 的入口
type TokenProvider interface {
	GetValidToken(ctx context.Context) (*model.ShopeeToken, error)
}

// AuthConfig Token 生命周期配置
type AuthConfig struct {
	ShopID            int64 // 回调未携带 shop_id 时使用
	RedirectURL       string
	RefreshThreshold  time.Duration
	DefaultRefreshTTL time.Duration
}

// TokenStatus 对外展示的授权状态 (不含令牌本身)
type TokenStatus struct {
	State            model.TokenState `json:"state"`
	ShopID           int64            `json:"shop_id,omitempty"`
	MerchantID       int64            `json:"merchant_id,omitempty"`
	IssuedAt         int64            `json:"issued_at,omitempty"`
	AccessExpiresAt  int64            `json:"access_expires_at,omitempty"`
	RefreshExpiresAt int64            `json:"refresh_expires_at,omitempty"`
	ExpiresIn        int64            `json:"expires_in"`
}

// AuthService Token 生命周期管理
// 所有读-刷新-写序列在同一把锁内完成，写回使用 issued_at CAS 防止多进程覆盖
type AuthService struct {
	store repository.TokenStore
	api   TokenAPI
	cfg   AuthConfig
	log   *zap.Logger
	now   func() time.Time

	mu sync.Mutex
}

// NewAuthService 工厂方法
func NewAuthService(store repository.TokenStore, api TokenAPI, cfg AuthConfig, logger *zap.Logger) *AuthService {
	if cfg.RefreshThreshold <= 0 {
		cfg.RefreshThreshold = DefaultRefreshThreshold
	}
	if cfg.DefaultRefreshTTL <= 0 {
		cfg.DefaultRefreshTTL = DefaultRefreshTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		store: store,
		api:   api,
		cfg:   cfg,
		log:   logger.With(zap.String("component", "auth")),
		now:   time.Now,
	}
}

// SetClock 替换时间源 (测试用)
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

// ==================== 授权 ====================

// GenerateLoginURL 生成店铺授权链接
func (s *AuthService) GenerateLoginURL() (string, error) {
	return s.api.AuthURL(s.cfg.RedirectURL)
}

// HandleCallback 授权回调: 用 code 换取 Token 并替换当前记录
func (s *AuthService) HandleCallback(ctx context.Context, code string, shopID int64) (*model.ShopeeToken, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: code", ErrMissingParam)
	}
	if shopID == 0 {
		shopID = s.cfg.ShopID
	}
	if shopID == 0 {
		return nil, fmt.Errorf("%w: shop_id", ErrMissingParam)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.api.GetAccessToken(ctx, code, shopID)
	if errors.Is(err, shopee.ErrAuthInvalid) {
		// 授权码被拒绝: 与刷新被拒绝相同，清除旧 Token 并要求重新授权
		s.log.Warn("[Token] 换取 Token 被拒绝", zap.Int64("shop_id", shopID), zap.String("message", shopee.ProviderMessage(err)))
		if clearErr := s.store.Clear(ctx); clearErr != nil {
			return nil, fmt.Errorf("清除 Token 失败: %w", clearErr)
		}
		return nil, fmt.Errorf("%w: 换取 Token 失败: %w", ErrReauthRequired, err)
	}
	if err != nil {
		return nil, fmt.Errorf("换取 Token 失败: %w", err)
	}
	if resp.ExpireIn <= 0 {
		return nil, fmt.Errorf("换取 Token 失败: invalid expire_in %d", resp.ExpireIn)
	}

	now := s.now().Unix()
	refreshTTL := resp.RefreshExpireIn
	if refreshTTL <= 0 {
		refreshTTL = int64(s.cfg.DefaultRefreshTTL / time.Second)
	}

	tok := &model.ShopeeToken{
		ShopID:          resp.ShopID,
		MerchantID:      resp.MerchantID,
		AccessToken:     resp.AccessToken,
		RefreshToken:    resp.RefreshToken,
		AccessTTL:       resp.ExpireIn,
		IssuedAt:        now,
		RefreshTTL:      refreshTTL,
		RefreshIssuedAt: now,
		RawResponse:     rawJSON(resp),
	}
	if err := s.store.Save(ctx, tok); err != nil {
		return nil, fmt.Errorf("保存 Token 失败: %w", err)
	}

	s.log.Info("[Token] 授权成功", zap.Int64("shop_id", tok.ShopID), zap.Int64("expire_in", tok.AccessTTL))
	return tok, nil
}

// ==================== 生命周期 ====================

// GetValidToken 返回可用 Token；每次调用都按当前时间重新判定
// 刷新遇到瞬时错误时返回旧 Token，不强制重新授权
func (s *AuthService) GetValidToken(ctx context.Context) (*model.ShopeeToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取 Token 失败: %w", err)
	}

	now := s.now()
	switch state := tok.State(now, s.cfg.RefreshThreshold); state {
	case model.TokenStateNone:
		return nil, ErrReauthRequired
	case model.TokenStateRefreshExpired:
		return nil, s.clear(ctx, "refresh token expired")
	case model.TokenStateValid:
		return tok, nil
	default:
		return s.refresh(ctx, tok, now, false)
	}
}

// ForceRefresh 立即刷新；与自动刷新不同，瞬时错误直接返回给调用方
func (s *AuthService) ForceRefresh(ctx context.Context) (*model.ShopeeToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取 Token 失败: %w", err)
	}

	now := s.now()
	switch tok.State(now, s.cfg.RefreshThreshold) {
	case model.TokenStateNone:
		return nil, ErrReauthRequired
	case model.TokenStateRefreshExpired:
		return nil, s.clear(ctx, "refresh token expired")
	}
	return s.refresh(ctx, tok, now, true)
}

// Logout 清除当前 Token
func (s *AuthService) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("清除 Token 失败: %w", err)
	}
	s.log.Info("[Token] 已退出授权")
	return nil
}

// Status 查询授权状态
func (s *AuthService) Status(ctx context.Context) (*TokenStatus, error) {
	tok, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取 Token 失败: %w", err)
	}

	now := s.now()
	status := &TokenStatus{State: tok.State(now, s.cfg.RefreshThreshold)}
	if tok == nil {
		return status, nil
	}

	status.ShopID = tok.ShopID
	status.MerchantID = tok.MerchantID
	status.IssuedAt = tok.IssuedAt
	status.AccessExpiresAt = tok.AccessExpiresAt()
	status.RefreshExpiresAt = tok.RefreshExpiresAt()
	if remaining := tok.AccessExpiresAt() - now.Unix(); remaining > 0 {
		status.ExpiresIn = remaining
	}
	return status, nil
}

// ==================== 内部 ====================

// refresh 调用刷新接口并以 CAS 写回；调用方必须持有 s.mu
func (s *AuthService) refresh(ctx context.Context, tok *model.ShopeeToken, now time.Time, force bool) (*model.ShopeeToken, error) {
	resp, err := s.api.RefreshAccessToken(ctx, tok.RefreshToken, tok.ShopID)

	// A. 平台明确拒绝: 清除并要求重新授权
	if errors.Is(err, shopee.ErrAuthInvalid) {
		s.log.Warn("[Token] 刷新被拒绝", zap.Int64("shop_id", tok.ShopID), zap.String("message", shopee.ProviderMessage(err)))
		if clearErr := s.store.Clear(ctx); clearErr != nil {
			return nil, fmt.Errorf("清除 Token 失败: %w", clearErr)
		}
		return nil, fmt.Errorf("%w: %s", ErrReauthRequired, shopee.ProviderMessage(err))
	}
	if err == nil && resp.ExpireIn <= 0 {
		err = fmt.Errorf("invalid expire_in %d", resp.ExpireIn)
	}

	// B. 网络/瞬时错误: 保留旧 Token
	if err != nil {
		if force {
			return nil, fmt.Errorf("刷新 Token 失败: %w", err)
		}
		s.log.Warn("[Token] 刷新失败，继续使用旧 Token",
			zap.Int64("shop_id", tok.ShopID),
			zap.Int64("access_expires_at", tok.AccessExpiresAt()),
			zap.Error(err))
		return tok, nil
	}

	// C. 成功: refresh_issued_at / refresh_ttl 仅在平台返回新值时更新
	next := tok.Clone()
	next.AccessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		next.RefreshToken = resp.RefreshToken
	}
	next.AccessTTL = resp.ExpireIn
	next.IssuedAt = now.Unix()
	if resp.RefreshExpireIn > 0 {
		next.RefreshTTL = resp.RefreshExpireIn
		next.RefreshIssuedAt = now.Unix()
	}
	if resp.MerchantID != 0 {
		next.MerchantID = resp.MerchantID
	}
	next.RawResponse = rawJSON(resp)

	swapped, err := s.store.CompareAndSwap(ctx, tok.Version(), next)
	if err != nil {
		return nil, fmt.Errorf("保存 Token 失败: %w", err)
	}
	if !swapped {
		// 其他实例已先一步写回，以存储为准
		cur, err := s.store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("读取 Token 失败: %w", err)
		}
		if cur == nil {
			return nil, ErrReauthRequired
		}
		s.log.Info("[Token] 已被其他实例刷新", zap.Int64("shop_id", cur.ShopID))
		return cur, nil
	}

	s.log.Info("[Token] 刷新成功",
		zap.Int64("shop_id", next.ShopID),
		zap.Int64("expire_in", next.AccessTTL))
	return next, nil
}

// clear 清除 Token 并返回 ErrReauthRequired；调用方必须持有 s.mu
func (s *AuthService) clear(ctx context.Context, reason string) error {
	s.log.Warn("[Token] 清除 Token，需要重新授权", zap.String("reason", reason))
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("清除 Token 失败: %w", err)
	}
	return fmt.Errorf("%w: %s", ErrReauthRequired, reason)
}

func rawJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
