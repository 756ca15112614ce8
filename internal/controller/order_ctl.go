package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"shopee_order_v1/internal/model"
	"shopee_order_v1/internal/service"
)

// OrderUsecase 订单看板与标注
type OrderUsecase interface {
	Board(ctx context.Context, q service.BoardQuery) (*service.Board, error)
	Sync(ctx context.Context, status string) (*service.OrderSnapshot, error)
	Annotations(ctx context.Context) ([]model.OrderAnnotation, error)
	SaveAnnotation(ctx context.Context, a *model.OrderAnnotation) error
	SaveAnnotations(ctx context.Context, list []model.OrderAnnotation) (int, error)
}

type OrderController struct {
	orderService OrderUsecase
	loginURL     LoginURLFunc
}

// NewOrderController loginURL 用于未授权时在响应中附带授权链接，可为 nil
func NewOrderController(s OrderUsecase, loginURL LoginURLFunc) *OrderController {
	return &OrderController{orderService: s, loginURL: loginURL}
}

// BatchAnnotationReq 批量保存标注请求
type BatchAnnotationReq struct {
	Annotations []model.OrderAnnotation `json:"annotations" binding:"required"`
}

// SyncReq 手动同步请求
type SyncReq struct {
	Status string `json:"status"`
}

// List
// @Summary 订单看板
// @Description 按商品行展开订单并合并标注；缓存过期或 refresh=true 时重新同步
// @Tags Order (订单模块)
// @Produce json
// @Param status query string false "订单状态，默认 READY_TO_SHIP"
// @Param refresh query bool false "强制刷新"
// @Success 200 {object} service.Board
// @Failure 401 {object} map[string]string "需要重新授权"
// @Router /api/orders [get]
func (ctrl *OrderController) List(c *gin.Context) {
	refresh, ok := queryBool(c, "refresh")
	if !ok {
		return
	}

	board, err := ctrl.orderService.Board(c.Request.Context(), service.BoardQuery{
		Status:  c.Query("status"),
		Refresh: refresh,
	})
	if err != nil {
		respondError(c, "获取订单失败", err, ctrl.loginURL)
		return
	}
	c.JSON(http.StatusOK, board)
}

// Sync
// @Summary 手动同步订单
// @Tags Order (订单模块)
// @Accept json
// @Produce json
// @Param body body SyncReq false "同步参数"
// @Success 200 {object} map[string]interface{} "同步结果"
// @Failure 429 {object} map[string]interface{} "冷却中"
// @Router /api/orders/sync [post]
func (ctrl *OrderController) Sync(c *gin.Context) {
	var req SyncReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误", "detail": err.Error()})
			return
		}
	}
	if req.Status == "" {
		req.Status = c.Query("status")
	}

	snap, err := ctrl.orderService.Sync(c.Request.Context(), req.Status)
	if err != nil {
		respondError(c, "同步失败", err, ctrl.loginURL)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "同步完成",
		"status":    snap.Status,
		"listed":    snap.Listed,
		"orders":    len(snap.Details),
		"synced_at": snap.SyncedAt,
		"partial":   snap.Partial(),
		"failures":  snap.Failures,
	})
}

// ListAnnotations
// @Summary 全部标注
// @Tags Order (订单模块)
// @Produce json
// @Router /api/orders/annotations [get]
func (ctrl *OrderController) ListAnnotations(c *gin.Context) {
	list, err := ctrl.orderService.Annotations(c.Request.Context())
	if err != nil {
		respondError(c, "读取标注失败", err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"annotations": list, "count": len(list)})
}

// SaveAnnotation
// @Summary 保存单条标注
// @Tags Order (订单模块)
// @Accept json
// @Produce json
// @Param body body model.OrderAnnotation true "标注"
// @Router /api/orders/annotations [put]
func (ctrl *OrderController) SaveAnnotation(c *gin.Context) {
	var a model.OrderAnnotation
	if err := c.ShouldBindJSON(&a); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误", "detail": err.Error()})
		return
	}

	if err := ctrl.orderService.SaveAnnotation(c.Request.Context(), &a); err != nil {
		respondError(c, "保存标注失败", err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "保存成功", "annotation": a})
}

// SaveAnnotations
// @Summary 批量保存标注
// @Description 同一键出现多次时以最后一条为准；任一条校验失败则整批不写入
// @Tags Order (订单模块)
// @Accept json
// @Produce json
// @Param body body BatchAnnotationReq true "标注列表"
// @Router /api/orders/annotations/batch [put]
func (ctrl *OrderController) SaveAnnotations(c *gin.Context) {
	var req BatchAnnotationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误", "detail": err.Error()})
		return
	}

	saved, err := ctrl.orderService.SaveAnnotations(c.Request.Context(), req.Annotations)
	if err != nil {
		respondError(c, "批量保存失败", err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "保存成功", "count": saved, "received": len(req.Annotations)})
}
