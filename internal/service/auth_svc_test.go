package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopee_order_v1/internal/model"
	"shopee_order_v1/internal/repository"
	"shopee_order_v1/pkg/shopee"
)

// ==================== 测试辅助 ====================

// fakeTokenAPI 可编程的授权接口
type fakeTokenAPI struct {
	mu           sync.Mutex
	refreshCalls int32
	exchangeArgs []string
	refreshResp  *shopee.TokenResp
	refreshErr   error
	exchangeResp *shopee.TokenResp
	exchangeErr  error
	refreshDelay time.Duration
}

func (f *fakeTokenAPI) AuthURL(redirect string) (string, error) {
	return "https://partner.shopeemobile.com/api/v2/shop/auth_partner?redirect=" + redirect, nil
}

func (f *fakeTokenAPI) GetAccessToken(_ context.Context, code string, _ int64) (*shopee.TokenResp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchangeArgs = append(f.exchangeArgs, code)
	return f.exchangeResp, f.exchangeErr
}

func (f *fakeTokenAPI) RefreshAccessToken(_ context.Context, _ string, _ int64) (*shopee.TokenResp, error) {
	atomic.AddInt32(&f.refreshCalls, 1)
	if f.refreshDelay > 0 {
		time.Sleep(f.refreshDelay)
	}
	return f.refreshResp, f.refreshErr
}

func (f *fakeTokenAPI) calls() int {
	return int(atomic.LoadInt32(&f.refreshCalls))
}

var fixedNow = time.Unix(1700000000, 0)

func newTestAuthService(t *testing.T, api *fakeTokenAPI) (*AuthService, repository.TokenStore) {
	t.Helper()
	store := repository.NewMemoryTokenStore()
	svc := NewAuthService(store, api, AuthConfig{ShopID: 123456, RedirectURL: "http://localhost/cb"}, nil)
	svc.SetClock(func() time.Time { return fixedNow })
	return svc, store
}

// tokenWithRemaining access 剩余 remaining 秒，refresh 仍有效
func tokenWithRemaining(remaining int64) *model.ShopeeToken {
	return &model.ShopeeToken{
		ShopID:          123456,
		AccessToken:     "old-at",
		RefreshToken:    "old-rt",
		AccessTTL:       14400,
		IssuedAt:        fixedNow.Unix() + remaining - 14400,
		RefreshTTL:      31536000,
		RefreshIssuedAt: fixedNow.Unix() - 86400,
	}
}

func okRefresh() *shopee.TokenResp {
	return &shopee.TokenResp{AccessToken: "new-at", RefreshToken: "new-rt", ExpireIn: 14400, ShopID: 123456}
}

// ==================== 阈值边界 ====================

func TestAuthService_ThresholdBoundary(t *testing.T) {
	ctx := context.Background()

	t.Run("301 seconds left is used as-is", func(t *testing.T) {
		api := &fakeTokenAPI{refreshResp: okRefresh()}
		svc, store := newTestAuthService(t, api)
		require.NoError(t, store.Save(ctx, tokenWithRemaining(301)))

		tok, err := svc.GetValidToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, "old-at", tok.AccessToken)
		assert.Equal(t, 0, api.calls())
	})

	t.Run("299 seconds left triggers refresh", func(t *testing.T) {
		api := &fakeTokenAPI{refreshResp: okRefresh()}
		svc, store := newTestAuthService(t, api)
		require.NoError(t, store.Save(ctx, tokenWithRemaining(299)))

		tok, err := svc.GetValidToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, "new-at", tok.AccessToken)
		assert.Equal(t, 1, api.calls())
	})
}

// ==================== 终态 ====================

func TestAuthService_RefreshTokenExpired(t *testing.T) {
	ctx := context.Background()
	api := &fakeTokenAPI{refreshResp: okRefresh()}
	svc, store := newTestAuthService(t, api)

	tok := tokenWithRemaining(-100)
	tok.RefreshIssuedAt = fixedNow.Unix() - tok.RefreshTTL
	require.NoError(t, store.Save(ctx, tok))

	got, err := svc.GetValidToken(ctx)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, ErrReauthRequired))
	assert.Equal(t, 0, api.calls(), "expired refresh token must not be used")

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestAuthService_NoToken(t *testing.T) {
	svc, _ := newTestAuthService(t, &fakeTokenAPI{})
	_, err := svc.GetValidToken(context.Background())
	assert.True(t, errors.Is(err, ErrReauthRequired))
}

// ==================== 端到端 ====================

func TestAuthService_ExpiredAccessRefreshesOnce(t *testing.T) {
	ctx := context.Background()
	api := &fakeTokenAPI{refreshResp: okRefresh()}
	svc, store := newTestAuthService(t, api)

	tok := &model.ShopeeToken{
		ShopID:          123456,
		AccessToken:     "old-at",
		RefreshToken:    "old-rt",
		AccessTTL:       14400,
		IssuedAt:        fixedNow.Unix() - 100000,
		RefreshTTL:      31536000,
		RefreshIssuedAt: fixedNow.Unix() - 100000,
	}
	require.NoError(t, store.Save(ctx, tok))

	got, err := svc.GetValidToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls())
	assert.Equal(t, "new-at", got.AccessToken)
	assert.Equal(t, "new-rt", got.RefreshToken)
	assert.Equal(t, fixedNow.Unix(), got.IssuedAt)
	// 平台未返回 refresh 有效期，沿用旧值
	assert.Equal(t, fixedNow.Unix()-100000, got.RefreshIssuedAt)
	assert.EqualValues(t, 31536000, got.RefreshTTL)

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new-at", stored.AccessToken)
	assert.Equal(t, fixedNow.Unix(), stored.IssuedAt)

	// 新 Token 有效，第二次调用不再刷新
	_, err = svc.GetValidToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls())
}

func TestAuthService_RefreshCarriesNewRefreshExpiry(t *testing.T) {
	ctx := context.Background()
	resp := okRefresh()
	resp.RefreshExpireIn = 2592000
	api := &fakeTokenAPI{refreshResp: resp}
	svc, store := newTestAuthService(t, api)
	require.NoError(t, store.Save(ctx, tokenWithRemaining(10)))

	got, err := svc.GetValidToken(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2592000, got.RefreshTTL)
	assert.Equal(t, fixedNow.Unix(), got.RefreshIssuedAt)
}

// ==================== 刷新失败 ====================

func TestAuthService_TransientRefreshKeepsOldToken(t *testing.T) {
	ctx := context.Background()
	api := &fakeTokenAPI{refreshErr: &shopee.TransientError{StatusCode: 502}}
	svc, store := newTestAuthService(t, api)
	require.NoError(t, store.Save(ctx, tokenWithRemaining(-50)))

	got, err := svc.GetValidToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "old-at", got.AccessToken)

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "old-at", stored.AccessToken)
}

func TestAuthService_ForceRefreshSurfacesTransientError(t *testing.T) {
	ctx := context.Background()
	api := &fakeTokenAPI{refreshErr: &shopee.TransientError{StatusCode: 503}}
	svc, store := newTestAuthService(t, api)
	require.NoError(t, store.Save(ctx, tokenWithRemaining(3600)))

	_, err := svc.ForceRefresh(ctx)
	require.Error(t, err)
	assert.True(t, shopee.IsRetryable(err))
}

func TestAuthService_AuthInvalidClearsToken(t *testing.T) {
	ctx := context.Background()
	api := &fakeTokenAPI{refreshErr: &shopee.APIError{StatusCode: 200, Code: "error_auth", Message: "refresh_token expired"}}
	svc, store := newTestAuthService(t, api)
	require.NoError(t, store.Save(ctx, tokenWithRemaining(100)))

	got, err := svc.GetValidToken(ctx)
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReauthRequired))
	assert.Contains(t, err.Error(), "refresh_token expired")

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestAuthService_InvalidExpireInKeepsOldToken(t *testing.T) {
	ctx := context.Background()
	api := &fakeTokenAPI{refreshResp: &shopee.TokenResp{AccessToken: "new-at"}}
	svc, store := newTestAuthService(t, api)
	require.NoError(t, store.Save(ctx, tokenWithRemaining(100)))

	got, err := svc.GetValidToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "old-at", got.AccessToken)
}

// ==================== 并发 ====================

func TestAuthService_ConcurrentCallersRefreshOnce(t *testing.T) {
	ctx := context.Background()
	api := &fakeTokenAPI{refreshResp: okRefresh(), refreshDelay: 20 * time.Millisecond}
	svc, store := newTestAuthService(t, api)
	require.NoError(t, store.Save(ctx, tokenWithRemaining(100)))

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := svc.GetValidToken(ctx)
			if err == nil {
				results[i] = tok.AccessToken
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, api.calls())
	for _, r := range results {
		assert.Equal(t, "new-at", r)
	}
}

// casLosingStore 模拟另一实例抢先写回
type casLosingStore struct {
	repository.TokenStore
	winner *model.ShopeeToken
}

func (s *casLosingStore) CompareAndSwap(ctx context.Context, _ model.TokenVersion, _ *model.ShopeeToken) (bool, error) {
	if err := s.TokenStore.Save(ctx, s.winner); err != nil {
		return false, err
	}
	return false, nil
}

func TestAuthService_LostCompareAndSwapReturnsStored(t *testing.T) {
	ctx := context.Background()
	api := &fakeTokenAPI{refreshResp: okRefresh()}
	winner := tokenWithRemaining(14400)
	winner.AccessToken = "winner-at"

	store := &casLosingStore{TokenStore: repository.NewMemoryTokenStore(), winner: winner}
	require.NoError(t, store.Save(ctx, tokenWithRemaining(10)))

	svc := NewAuthService(store, api, AuthConfig{}, nil)
	svc.SetClock(func() time.Time { return fixedNow })

	got, err := svc.GetValidToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "winner-at", got.AccessToken)
}

// ==================== 授权回调 ====================

func TestAuthService_HandleCallback(t *testing.T) {
	ctx := context.Background()
	api := &fakeTokenAPI{exchangeResp: &shopee.TokenResp{
		AccessToken: "at", RefreshToken: "rt", ExpireIn: 14400, ShopID: 123456, RequestID: "r",
	}}
	svc, store := newTestAuthService(t, api)

	tok, err := svc.HandleCallback(ctx, "the-code", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"the-code"}, api.exchangeArgs)
	assert.Equal(t, fixedNow.Unix(), tok.IssuedAt)
	assert.Equal(t, fixedNow.Unix(), tok.RefreshIssuedAt)
	assert.EqualValues(t, 31536000, tok.RefreshTTL)
	assert.NotEmpty(t, tok.RawResponse)

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at", stored.AccessToken)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.TokenStateValid, status.State)
	assert.EqualValues(t, 14400, status.ExpiresIn)
}

func TestAuthService_HandleCallbackValidation(t *testing.T) {
	api := &fakeTokenAPI{}
	store := repository.NewMemoryTokenStore()
	svc := NewAuthService(store, api, AuthConfig{}, nil)

	_, err := svc.HandleCallback(context.Background(), "", 1)
	assert.True(t, errors.Is(err, ErrMissingParam))

	_, err = svc.HandleCallback(context.Background(), "code", 0)
	assert.True(t, errors.Is(err, ErrMissingParam))
	assert.Empty(t, api.exchangeArgs)
}

func TestAuthService_HandleCallbackAuthInvalid(t *testing.T) {
	ctx := context.Background()
	api := &fakeTokenAPI{exchangeErr: &shopee.APIError{Code: "error_auth", Message: "invalid code"}}
	svc, store := newTestAuthService(t, api)
	require.NoError(t, store.Save(ctx, tokenWithRemaining(3600)))

	_, err := svc.HandleCallback(ctx, "bad", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReauthRequired))
	assert.True(t, errors.Is(err, shopee.ErrAuthInvalid))
	assert.Contains(t, err.Error(), "invalid code")

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestAuthService_HandleCallbackTransientKeepsToken(t *testing.T) {
	ctx := context.Background()
	api := &fakeTokenAPI{exchangeErr: &shopee.TransientError{StatusCode: 502, Body: "bad gateway"}}
	svc, store := newTestAuthService(t, api)
	require.NoError(t, store.Save(ctx, tokenWithRemaining(3600)))

	_, err := svc.HandleCallback(ctx, "code", 1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrReauthRequired))

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestAuthService_LogoutAndStatus(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestAuthService(t, &fakeTokenAPI{})
	require.NoError(t, store.Save(ctx, tokenWithRemaining(200)))

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.TokenStateNearExpiry, status.State)
	assert.EqualValues(t, 200, status.ExpiresIn)

	require.NoError(t, svc.Logout(ctx))
	status, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.TokenStateNone, status.State)
}

func TestAuthService_GenerateLoginURL(t *testing.T) {
	svc, _ := newTestAuthService(t, &fakeTokenAPI{})
	u, err := svc.GenerateLoginURL()
	require.NoError(t, err)
	assert.Contains(t, u, "redirect=http://localhost/cb")
}
