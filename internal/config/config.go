package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 进程级配置，main 中构建一次后注入各组件
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Shopee   ShopeeConfig
	Token    TokenConfig
	Sync     SyncConfig
}

type ServerConfig struct {
	Port    string
	GinMode string
}

type LogConfig struct {
	Level       string
	Development bool
}

type DatabaseConfig struct {
	Driver string // postgres / sqlite
	DSN    string
	LogSQL bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ShopeeConfig 开放平台凭证
type ShopeeConfig struct {
	BaseURL     string
	PartnerID   int64
	PartnerKey  string
	ShopID      int64
	RedirectURL string
	Timeout     time.Duration
	ProxyURL    string
	Debug       bool
	MinInterval time.Duration
}

// Token 存储后端
const (
	TokenStoreDB     = "db"
	TokenStoreRedis  = "redis"
	TokenStoreMemory = "memory"
)

type TokenConfig struct {
	Store             string
	RefreshThreshold  time.Duration
	DefaultRefreshTTL time.Duration
	KeepaliveCron     string
}

type SyncConfig struct {
	TotalDays      int
	WindowDays     int
	PageSize       int
	OrderStatus    string
	MaxAttempts    int
	RetryDelay     time.Duration
	PageDelay      time.Duration
	DetailChunk    int
	DetailDelay    time.Duration
	CacheTTL       time.Duration
	Timeout        time.Duration
	ManualCooldown time.Duration
	Cron           string
	CatalogCron    string
}

// Load 读取 .env (可选) 与环境变量
func Load() (*Config, error) {
	// .env 不存在时忽略，直接使用环境变量
	_ = godotenv.Load()

	var errs []error
	cfg := &Config{
		Server: ServerConfig{
			Port:    getEnv("SERVER_PORT", "8080"),
			GinMode: getEnv("GIN_MODE", "release"),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvBool("LOG_DEV", false, &errs),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "postgres"),
			DSN:    getEnv("DB_DSN", "host=localhost user=postgres password=postgres dbname=shopee_order port=5432 sslmode=disable"),
			LogSQL: getEnvBool("DB_LOG_SQL", false, &errs),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0, &errs),
		},
		Shopee: ShopeeConfig{
			BaseURL:     getEnv("SHOPEE_BASE_URL", "https://partner.shopeemobile.com"),
			PartnerID:   getEnvInt64("SHOPEE_PARTNER_ID", 0, &errs),
			PartnerKey:  getEnv("SHOPEE_PARTNER_KEY", ""),
			ShopID:      getEnvInt64("SHOPEE_SHOP_ID", 0, &errs),
			RedirectURL: getEnv("SHOPEE_REDIRECT_URL", "http://localhost:8080/api/auth/callback"),
			Timeout:     getEnvDuration("SHOPEE_TIMEOUT", 30*time.Second, &errs),
			ProxyURL:    getEnv("SHOPEE_PROXY_URL", ""),
			Debug:       getEnvBool("SHOPEE_DEBUG", false, &errs),
			MinInterval: getEnvDuration("SHOPEE_MIN_INTERVAL", 0, &errs),
		},
		Token: TokenConfig{
			Store:             getEnv("TOKEN_STORE", TokenStoreDB),
			RefreshThreshold:  getEnvDuration("TOKEN_REFRESH_THRESHOLD", 300*time.Second, &errs),
			DefaultRefreshTTL: getEnvDuration("TOKEN_DEFAULT_REFRESH_TTL", 31536000*time.Second, &errs),
			KeepaliveCron:     getEnv("TOKEN_CRON", "0 */30 * * * *"),
		},
		Sync: SyncConfig{
			TotalDays:      getEnvInt("SYNC_TOTAL_DAYS", 30, &errs),
			WindowDays:     getEnvInt("SYNC_WINDOW_DAYS", 15, &errs),
			PageSize:       getEnvInt("SYNC_PAGE_SIZE", 100, &errs),
			OrderStatus:    getEnv("SYNC_ORDER_STATUS", "READY_TO_SHIP"),
			MaxAttempts:    getEnvInt("SYNC_MAX_ATTEMPTS", 3, &errs),
			RetryDelay:     getEnvDuration("SYNC_RETRY_DELAY", time.Second, &errs),
			PageDelay:      getEnvDuration("SYNC_PAGE_DELAY", 500*time.Millisecond, &errs),
			DetailChunk:    getEnvInt("SYNC_DETAIL_CHUNK", 50, &errs),
			DetailDelay:    getEnvDuration("SYNC_DETAIL_DELAY", 100*time.Millisecond, &errs),
			CacheTTL:       getEnvDuration("SYNC_CACHE_TTL", 5*time.Minute, &errs),
			Timeout:        getEnvDuration("SYNC_TIMEOUT", 10*time.Minute, &errs),
			ManualCooldown: getEnvDuration("SYNC_MANUAL_COOLDOWN", 30*time.Second, &errs),
			Cron:           getEnv("SYNC_CRON", "0 */10 * * * *"),
			CatalogCron:    getEnv("CATALOG_CRON", "0 0 * * * *"),
		},
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, cfg.Validate()
}

// Validate 校验必填项与数值范围
func (c *Config) Validate() error {
	var errs []error
	if c.Shopee.PartnerID <= 0 {
		errs = append(errs, errors.New("SHOPEE_PARTNER_ID is required"))
	}
	if c.Shopee.PartnerKey == "" {
		errs = append(errs, errors.New("SHOPEE_PARTNER_KEY is required"))
	}

	switch c.Token.Store {
	case TokenStoreDB, TokenStoreRedis, TokenStoreMemory:
	default:
		errs = append(errs, fmt.Errorf("TOKEN_STORE must be one of db|redis|memory, got %q", c.Token.Store))
	}
	if c.Token.RefreshThreshold < 0 {
		errs = append(errs, errors.New("TOKEN_REFRESH_THRESHOLD must not be negative"))
	}

	if c.Sync.TotalDays <= 0 {
		errs = append(errs, errors.New("SYNC_TOTAL_DAYS must be positive"))
	}
	if c.Sync.WindowDays <= 0 || c.Sync.WindowDays > 15 {
		errs = append(errs, errors.New("SYNC_WINDOW_DAYS must be within 1..15"))
	}
	if c.Sync.PageSize <= 0 || c.Sync.PageSize > 100 {
		errs = append(errs, errors.New("SYNC_PAGE_SIZE must be within 1..100"))
	}
	if c.Sync.DetailChunk <= 0 || c.Sync.DetailChunk > 50 {
		errs = append(errs, errors.New("SYNC_DETAIL_CHUNK must be within 1..50"))
	}
	if c.Sync.MaxAttempts <= 0 {
		errs = append(errs, errors.New("SYNC_MAX_ATTEMPTS must be positive"))
	}
	return errors.Join(errs...)
}

// ==================== 工具函数 ====================

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getEnvInt64(key string, defaultValue int64, errs *[]error) int64 {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool, errs *[]error) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

// getEnvDuration 支持 "1500ms" / "2s" 以及纯数字 (按秒)
func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}
