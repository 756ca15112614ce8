package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shopee_order_v1/internal/repository"
	"shopee_order_v1/internal/service"
	"shopee_order_v1/pkg/shopee"
)

// LoginURLFunc 生成重新授权链接，401 响应中附带
type LoginURLFunc func() (string, error)

// respondError 业务错误映射为 HTTP 状态码
func respondError(c *gin.Context, msg string, err error, loginURL LoginURLFunc) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, service.ErrReauthRequired), errors.Is(err, shopee.ErrAuthInvalid):
		body := gin.H{"error": "需要重新授权", "detail": err.Error()}
		if loginURL != nil {
			if url, uerr := loginURL(); uerr == nil {
				body["auth_url"] = url
			}
		}
		c.JSON(http.StatusUnauthorized, body)
	case errors.Is(err, service.ErrMissingParam), errors.Is(err, repository.ErrInvalidAnnotation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误", "detail": err.Error()})
	case errors.Is(err, service.ErrSyncFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": msg, "detail": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "请求超时", "detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg, "detail": err.Error()})
	}
}

// queryBool 解析布尔查询参数，缺省为 false
func queryBool(c *gin.Context, name string) (bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " 必须是布尔值"})
		return false, false
	}
	return v, true
}
