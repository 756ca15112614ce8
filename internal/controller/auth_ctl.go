package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shopee_order_v1/internal/model"
	"shopee_order_v1/internal/service"
)

// AuthUsecase 授权相关操作
type AuthUsecase interface {
	GenerateLoginURL() (string, error)
	HandleCallback(ctx context.Context, code string, shopID int64) (*model.ShopeeToken, error)
	ForceRefresh(ctx context.Context) (*model.ShopeeToken, error)
	Logout(ctx context.Context) error
	Status(ctx context.Context) (*service.TokenStatus, error)
}

type AuthController struct {
	authService AuthUsecase
}

func NewAuthController(s AuthUsecase) *AuthController {
	return &AuthController{authService: s}
}

// Login
// @Summary 获取 Shopee 授权链接
// @Description 生成签名后的 auth_partner 链接，由商家在浏览器中打开完成授权
// @Tags Auth (授权模块)
// @Produce json
// @Success 200 {object} map[string]interface{} "auth_url"
// @Failure 500 {object} map[string]string "错误信息"
// @Router /api/auth/login [get]
func (ctrl *AuthController) Login(c *gin.Context) {
	url, err := ctrl.authService.GenerateLoginURL()
	if err != nil {
		respondError(c, "生成授权链接失败", err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "获取成功",
		"auth_url": url,
	})
}

// Callback
// @Summary Shopee 授权回调
// @Description 接收 code 与 shop_id，换取 Token 并保存
// @Tags Auth (授权模块)
// @Produce json
// @Param code query string true "授权码"
// @Param shop_id query int false "店铺 ID，缺省使用配置值"
// @Success 200 {object} map[string]interface{} "授权成功信息"
// @Failure 400 {object} map[string]string "参数错误"
// @Failure 401 {object} map[string]string "授权码被拒绝，需要重新授权"
// @Router /api/auth/callback [get]
func (ctrl *AuthController) Callback(c *gin.Context) {
	code := c.Query("code")

	var shopID int64
	if raw := c.Query("shop_id"); raw != "" {
		var err error
		shopID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "shop_id 必须是数字"})
			return
		}
	}

	tok, err := ctrl.authService.HandleCallback(c.Request.Context(), code, shopID)
	if err != nil {
		respondError(c, "授权失败", err, ctrl.authService.GenerateLoginURL)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "店铺授权成功",
		"shop_id":    tok.ShopID,
		"expire_at":  tok.AccessExpiresAt(),
		"refresh_at": tok.RefreshExpiresAt(),
	})
}

// Status
// @Summary Token 状态
// @Tags Auth (授权模块)
// @Produce json
// @Success 200 {object} service.TokenStatus
// @Router /api/auth/status [get]
func (ctrl *AuthController) Status(c *gin.Context) {
	st, err := ctrl.authService.Status(c.Request.Context())
	if err != nil {
		respondError(c, "读取 Token 状态失败", err, nil)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Refresh 手动强制刷新 Token
// @Summary 刷新 Token
// @Tags Auth (授权模块)
// @Produce json
// @Success 200 {object} map[string]interface{} "成功消息+过期时间"
// @Failure 401 {object} map[string]string "需要重新授权"
// @Router /api/auth/refresh [post]
func (ctrl *AuthController) Refresh(c *gin.Context) {
	tok, err := ctrl.authService.ForceRefresh(c.Request.Context())
	if err != nil {
		respondError(c, "刷新失败", err, ctrl.authService.GenerateLoginURL)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Token 刷新成功",
		"shop_id":   tok.ShopID,
		"expire_at": tok.AccessExpiresAt(),
	})
}

// Logout
// @Summary 清除当前 Token
// @Tags Auth (授权模块)
// @Produce json
// @Router /api/auth/logout [post]
func (ctrl *AuthController) Logout(c *gin.Context) {
	if err := ctrl.authService.Logout(c.Request.Context()); err != nil {
		respondError(c, "清除 Token 失败", err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已退出授权"})
}
