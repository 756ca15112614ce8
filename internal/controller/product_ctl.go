package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"shopee_order_v1/internal/service"
)

// CatalogUsecase 商品目录
type CatalogUsecase interface {
	Products(ctx context.Context, refresh bool) (*service.Catalog, error)
}

type ProductController struct {
	catalog  CatalogUsecase
	loginURL LoginURLFunc
}

func NewProductController(s CatalogUsecase, loginURL LoginURLFunc) *ProductController {
	return &ProductController{catalog: s, loginURL: loginURL}
}

// List
// @Summary 商品目录
// @Tags Product (商品模块)
// @Produce json
// @Param refresh query bool false "强制刷新"
// @Success 200 {object} service.Catalog
// @Router /api/products [get]
func (ctrl *ProductController) List(c *gin.Context) {
	refresh, ok := queryBool(c, "refresh")
	if !ok {
		return
	}

	catalog, err := ctrl.catalog.Products(c.Request.Context(), refresh)
	if err != nil {
		respondError(c, "获取商品失败", err, ctrl.loginURL)
		return
	}
	c.JSON(http.StatusOK, catalog)
}
