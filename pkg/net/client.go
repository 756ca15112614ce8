package net

import (
	stdnet "net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Shopee-Order-Go/1.0"
)

// ClientOptions Resty 客户端配置
type ClientOptions struct {
	BaseURL   string
	Timeout   time.Duration // <=0 时使用 30s
	ProxyURL  string        // 为空则直连
	Debug     bool
	UserAgent string
	Logger    *zap.Logger
}

// NewRestyClient 创建一个配置好超时、连接复用和可选代理的 Resty 客户端
// 它是全系统统一的外部 HTTP 出口；重试由调用方 RetryPolicy 控制，客户端自身不重试
func NewRestyClient(opts ClientOptions) *resty.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	// 连接池: 复用 TCP 连接，避免分页拉取时频繁握手
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&stdnet.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	client := resty.New().
		SetTransport(tr).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetDebug(opts.Debug).
		SetHeader("User-Agent", ua).
		SetHeader("Accept", "application/json")

	if opts.BaseURL != "" {
		client.SetBaseURL(opts.BaseURL)
	}
	// 挂载代理
	if opts.ProxyURL != "" {
		client.SetProxy(opts.ProxyURL)
	}
	if opts.Logger != nil {
		client.SetLogger(opts.Logger.Sugar())
	}

	return client
}
