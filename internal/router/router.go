package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopee_order_v1/internal/controller"
	"shopee_order_v1/internal/middleware"
)

// Controllers 路由依赖
type Controllers struct {
	Auth    *controller.AuthController
	Order   *controller.OrderController
	Product *controller.ProductController
}

// Options 路由选项
type Options struct {
	SyncCooldown time.Duration // POST /api/orders/sync 冷却间隔，0 使用默认值
	Limiter      *middleware.SyncRateLimiter
	Logger       *zap.Logger
}

// New 创建 gin 引擎并注册所有路由
func New(ctl Controllers, opts Options) *gin.Engine {
	r := gin.New()
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Limiter == nil {
		opts.Limiter = middleware.NewSyncRateLimiter()
	}

	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(opts.Logger))
	InitRoutes(r, ctl, opts)
	return r
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, ctl Controllers, opts Options) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		// auth 授权组
		auth := api.Group("/auth")
		{
			// GET /api/auth/login
			auth.GET("/login", ctl.Auth.Login)

			// GET /api/auth/callback?code=&shop_id=
			auth.GET("/callback", ctl.Auth.Callback)

			auth.GET("/status", ctl.Auth.Status)
			auth.POST("/refresh", ctl.Auth.Refresh)
			auth.POST("/logout", ctl.Auth.Logout)
		}

		// orders 订单看板
		orders := api.Group("/orders")
		{
			orders.GET("", ctl.Order.List)
			orders.POST("/sync",
				middleware.SyncRateLimit(opts.Limiter, middleware.SyncTypeOrder, opts.SyncCooldown),
				ctl.Order.Sync,
			)
			orders.GET("/annotations", ctl.Order.ListAnnotations)
			orders.PUT("/annotations", ctl.Order.SaveAnnotation)
			orders.PUT("/annotations/batch", ctl.Order.SaveAnnotations)
		}

		// products 商品目录
		products := api.Group("/products")
		{
			products.GET("", ctl.Product.List)
		}
	}
}
