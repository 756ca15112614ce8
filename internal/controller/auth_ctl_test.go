package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopee_order_v1/internal/model"
	"shopee_order_v1/internal/service"
	"shopee_order_v1/pkg/shopee"
)

// ==================== 测试辅助 ====================

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		switch v := body.(type) {
		case string:
			reader = bytes.NewBufferString(v)
		default:
			b, _ := json.Marshal(v)
			reader = bytes.NewBuffer(b)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

const testAuthURL = "https://partner.test-stable.shopeemobile.com/api/v2/shop/auth_partner?partner_id=1"

type fakeAuth struct {
	callbackCode string
	callbackShop int64
	callbackErr  error
	refreshErr   error
	logoutCalled bool
	status       *service.TokenStatus
}

func (f *fakeAuth) GenerateLoginURL() (string, error) { return testAuthURL, nil }

func (f *fakeAuth) HandleCallback(_ context.Context, code string, shopID int64) (*model.ShopeeToken, error) {
	f.callbackCode, f.callbackShop = code, shopID
	if f.callbackErr != nil {
		return nil, f.callbackErr
	}
	return &model.ShopeeToken{ShopID: shopID, AccessTTL: 14400, IssuedAt: 1700000000, RefreshTTL: 2592000, RefreshIssuedAt: 1700000000}, nil
}

func (f *fakeAuth) ForceRefresh(context.Context) (*model.ShopeeToken, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &model.ShopeeToken{ShopID: 1, AccessTTL: 14400, IssuedAt: 1700000000}, nil
}

func (f *fakeAuth) Logout(context.Context) error {
	f.logoutCalled = true
	return nil
}

func (f *fakeAuth) Status(context.Context) (*service.TokenStatus, error) {
	if f.status == nil {
		return &service.TokenStatus{State: model.TokenStateNone}, nil
	}
	return f.status, nil
}

func setupAuthRouter(f *fakeAuth) *gin.Engine {
	r := gin.New()
	ctl := NewAuthController(f)
	g := r.Group("/api/auth")
	g.GET("/login", ctl.Login)
	g.GET("/callback", ctl.Callback)
	g.GET("/status", ctl.Status)
	g.POST("/refresh", ctl.Refresh)
	g.POST("/logout", ctl.Logout)
	return r
}

// ==================== 测试用例 ====================

func TestAuthController_Login(t *testing.T) {
	w := performRequest(setupAuthRouter(&fakeAuth{}), http.MethodGet, "/api/auth/login", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testAuthURL, decodeBody(t, w)["auth_url"])
}

func TestAuthController_Callback(t *testing.T) {
	f := &fakeAuth{}
	w := performRequest(setupAuthRouter(f), http.MethodGet, "/api/auth/callback?code=abc&shop_id=123456", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", f.callbackCode)
	assert.Equal(t, int64(123456), f.callbackShop)
	body := decodeBody(t, w)
	assert.Equal(t, float64(1700014400), body["expire_at"])
}

func TestAuthController_CallbackBadShopID(t *testing.T) {
	w := performRequest(setupAuthRouter(&fakeAuth{}), http.MethodGet, "/api/auth/callback?code=abc&shop_id=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthController_CallbackMissingCode(t *testing.T) {
	f := &fakeAuth{callbackErr: fmt.Errorf("%w: code", service.ErrMissingParam)}
	w := performRequest(setupAuthRouter(f), http.MethodGet, "/api/auth/callback", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthController_CallbackProviderError(t *testing.T) {
	f := &fakeAuth{callbackErr: errors.New("换取 Token 失败: boom")}
	w := performRequest(setupAuthRouter(f), http.MethodGet, "/api/auth/callback?code=abc", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeBody(t, w)["detail"], "boom")
}

func TestAuthController_CallbackRejectedCode(t *testing.T) {
	f := &fakeAuth{callbackErr: fmt.Errorf("%w: 换取 Token 失败: %w", service.ErrReauthRequired,
		&shopee.APIError{Code: "error_auth", Message: "invalid code"})}
	w := performRequest(setupAuthRouter(f), http.MethodGet, "/api/auth/callback?code=stale", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, testAuthURL, decodeBody(t, w)["auth_url"])
}

func TestAuthController_RefreshReauthRequired(t *testing.T) {
	f := &fakeAuth{refreshErr: fmt.Errorf("%w: invalid refresh_token", service.ErrReauthRequired)}
	w := performRequest(setupAuthRouter(f), http.MethodPost, "/api/auth/refresh", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, testAuthURL, decodeBody(t, w)["auth_url"])
}

func TestAuthController_RefreshTransient(t *testing.T) {
	f := &fakeAuth{refreshErr: &shopee.TransientError{StatusCode: 503}}
	w := performRequest(setupAuthRouter(f), http.MethodPost, "/api/auth/refresh", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAuthController_StatusAndLogout(t *testing.T) {
	f := &fakeAuth{status: &service.TokenStatus{State: model.TokenStateValid, ShopID: 9, ExpiresIn: 3600}}
	r := setupAuthRouter(f)

	w := performRequest(r, http.MethodGet, "/api/auth/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, string(model.TokenStateValid), body["state"])
	assert.Equal(t, float64(3600), body["expires_in"])

	w = performRequest(r, http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.logoutCalled)
}
