package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"shopee_order_v1/internal/controller"
	"shopee_order_v1/internal/middleware"
)

func TestNew_RegistersRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := New(Controllers{
		Auth:    controller.NewAuthController(nil),
		Order:   controller.NewOrderController(nil, nil),
		Product: controller.NewProductController(nil, nil),
	}, Options{})

	want := map[string]bool{
		"GET /health":                       false,
		"GET /api/auth/login":               false,
		"GET /api/auth/callback":            false,
		"GET /api/auth/status":              false,
		"POST /api/auth/refresh":            false,
		"POST /api/auth/logout":             false,
		"GET /api/orders":                   false,
		"POST /api/orders/sync":             false,
		"GET /api/orders/annotations":       false,
		"PUT /api/orders/annotations":       false,
		"PUT /api/orders/annotations/batch": false,
		"GET /api/products":                 false,
	}
	for _, route := range r.Routes() {
		key := route.Method + " " + route.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for key, found := range want {
		assert.True(t, found, key)
	}
}

func TestNew_HealthAndRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := New(Controllers{
		Auth:    controller.NewAuthController(nil),
		Order:   controller.NewOrderController(nil, nil),
		Product: controller.NewProductController(nil, nil),
	}, Options{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}
