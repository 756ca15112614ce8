package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shopee_order_v1/internal/config"
	"shopee_order_v1/internal/controller"
	"shopee_order_v1/internal/middleware"
	"shopee_order_v1/internal/model"
	"shopee_order_v1/internal/repository"
	"shopee_order_v1/internal/router"
	"shopee_order_v1/internal/service"
	"shopee_order_v1/internal/task"
	"shopee_order_v1/pkg/database"
	"shopee_order_v1/pkg/logger"
	"shopee_order_v1/pkg/shopee"
)

func main() {
	// 1. 配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置错误: %v\n", err)
		os.Exit(1)
	}

	// 2. 日志
	log := logger.Must(cfg.Log.Level, cfg.Log.Development)
	defer func() { _ = log.Sync() }()

	// 3. 初始化依赖
	deps, err := initDependencies(cfg, log)
	if err != nil {
		log.Fatal("初始化失败", zap.Error(err))
	}
	defer deps.Close()

	// 4. 启动定时任务
	if err := deps.Tasks.Start(); err != nil {
		log.Fatal("定时任务启动失败", zap.Error(err))
	}
	defer deps.Tasks.Stop()

	// 5. 启动服务
	gin.SetMode(cfg.Server.GinMode)
	r := router.New(deps.Controllers, router.Options{
		SyncCooldown: cfg.Sync.ManualCooldown,
		Limiter:      middleware.NewSyncRateLimiter(),
		Logger:       log,
	})
	startServer(r, cfg.Server.Port, log)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Services    *Services
	Controllers router.Controllers
	Tasks       *task.TaskManager
}

// Services 服务集合
type Services struct {
	Auth    *service.AuthService
	Order   *service.OrderService
	Catalog *service.CatalogService
}

// Close 释放数据库与 Redis 连接
func (d *Dependencies) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.DB != nil {
		if sqlDB, err := d.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// ==================== 初始化函数 ====================

// initDependencies 初始化所有依赖
func initDependencies(cfg *config.Config, log *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	// -------- 存储 --------
	db, err := database.Open(database.Options{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		LogSQL: cfg.Database.LogSQL,
	}, &model.ShopeeToken{}, &model.OrderAnnotation{})
	if err != nil {
		return nil, fmt.Errorf("数据库初始化失败: %w", err)
	}
	deps.DB = db

	tokenStore, err := initTokenStore(cfg, deps, log)
	if err != nil {
		deps.Close()
		return nil, err
	}

	// -------- Shopee 客户端 --------
	client, err := shopee.NewClient(shopee.ClientConfig{
		BaseURL:     cfg.Shopee.BaseURL,
		PartnerID:   cfg.Shopee.PartnerID,
		PartnerKey:  cfg.Shopee.PartnerKey,
		Timeout:     cfg.Shopee.Timeout,
		ProxyURL:    cfg.Shopee.ProxyURL,
		Debug:       cfg.Shopee.Debug,
		MinInterval: cfg.Shopee.MinInterval,
	}, log)
	if err != nil {
		deps.Close()
		return nil, err
	}

	// -------- 业务服务 --------
	authSvc := service.NewAuthService(tokenStore, client, service.AuthConfig{
		ShopID:            cfg.Shopee.ShopID,
		RedirectURL:       cfg.Shopee.RedirectURL,
		RefreshThreshold:  cfg.Token.RefreshThreshold,
		DefaultRefreshTTL: cfg.Token.DefaultRefreshTTL,
	}, log)

	fetchCfg := service.FetchConfig{
		TotalDays:   cfg.Sync.TotalDays,
		WindowDays:  cfg.Sync.WindowDays,
		PageSize:    cfg.Sync.PageSize,
		OrderStatus: cfg.Sync.OrderStatus,
		MaxAttempts: cfg.Sync.MaxAttempts,
		RetryDelay:  cfg.Sync.RetryDelay,
		PageDelay:   cfg.Sync.PageDelay,
		ChunkSize:   cfg.Sync.DetailChunk,
		ChunkDelay:  cfg.Sync.DetailDelay,
		Timeout:     cfg.Sync.Timeout,
	}
	orderSvc := service.NewOrderService(
		service.NewOrderFetcher(client, authSvc, fetchCfg, log),
		service.NewDetailFetcher(client, authSvc, fetchCfg, log),
		repository.NewAnnotationRepository(db),
		cfg.Sync.OrderStatus,
		cfg.Sync.CacheTTL,
		log,
	)
	catalogSvc := service.NewCatalogService(client, authSvc, fetchCfg, cfg.Sync.CacheTTL, log)

	deps.Services = &Services{Auth: authSvc, Order: orderSvc, Catalog: catalogSvc}

	// -------- Controller 层 --------
	deps.Controllers = router.Controllers{
		Auth:    controller.NewAuthController(authSvc),
		Order:   controller.NewOrderController(orderSvc, authSvc.GenerateLoginURL),
		Product: controller.NewProductController(catalogSvc, authSvc.GenerateLoginURL),
	}

	// -------- 定时任务 --------
	deps.Tasks = task.NewTaskManager(task.TaskManagerDeps{
		Tokens:  authSvc,
		Orders:  orderSvc,
		Catalog: catalogSvc,
	}, task.TaskManagerConfig{
		TokenSpec:   cfg.Token.KeepaliveCron,
		OrderSpec:   cfg.Sync.Cron,
		OrderStatus: cfg.Sync.OrderStatus,
		ProductSpec: cfg.Sync.CatalogCron,
	}, log)

	return deps, nil
}

// initTokenStore 按配置选择 Token 存储后端
func initTokenStore(cfg *config.Config, deps *Dependencies, log *zap.Logger) (repository.TokenStore, error) {
	switch cfg.Token.Store {
	case config.TokenStoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis 连接失败: %w", err)
		}
		deps.Redis = rdb
		log.Info("Token 存储: redis", zap.String("addr", cfg.Redis.Addr))
		return repository.NewRedisTokenStore(rdb, ""), nil
	case config.TokenStoreMemory:
		log.Warn("Token 存储: memory (进程重启后需要重新授权)")
		return repository.NewMemoryTokenStore(), nil
	default:
		log.Info("Token 存储: database")
		return repository.NewTokenRepository(deps.DB), nil
	}
}

// ==================== 服务启动 ====================

// startServer 启动服务并在收到退出信号后优雅关闭
func startServer(r *gin.Engine, port string, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 异步启动服务
	go func() {
		log.Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务...")

	// 优雅关闭，最多等待 30 秒
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("服务强制关闭", zap.Error(err))
	}

	log.Info("服务已退出")
}
