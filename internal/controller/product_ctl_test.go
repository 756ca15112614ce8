package controller

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"shopee_order_v1/internal/model"
	"shopee_order_v1/internal/service"
)

type fakeCatalog struct {
	refresh bool
	err     error
}

func (f *fakeCatalog) Products(_ context.Context, refresh bool) (*service.Catalog, error) {
	f.refresh = refresh
	if f.err != nil {
		return nil, f.err
	}
	return &service.Catalog{
		Products: []model.Product{{ItemID: 1, Name: "Mug"}},
		Total:    1,
	}, nil
}

func setupProductRouter(f *fakeCatalog) *gin.Engine {
	r := gin.New()
	ctl := NewProductController(f, func() (string, error) { return testAuthURL, nil })
	r.GET("/api/products", ctl.List)
	return r
}

func TestProductController_List(t *testing.T) {
	f := &fakeCatalog{}
	w := performRequest(setupProductRouter(f), http.MethodGet, "/api/products?refresh=1", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.refresh)
	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["total"])
	assert.Len(t, body["products"], 1)
}

func TestProductController_ListReauth(t *testing.T) {
	f := &fakeCatalog{err: service.ErrReauthRequired}
	w := performRequest(setupProductRouter(f), http.MethodGet, "/api/products", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, testAuthURL, decodeBody(t, w)["auth_url"])
	assert.False(t, f.refresh)
}
