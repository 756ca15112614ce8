package shopee

import "encoding/json"

// ==========================================
// DTO: 用于接收 Shopee API 返回的原始 JSON 数据
// ==========================================

// Envelope Shopee 通用响应外壳
// error 非空即视为业务失败 (即使 HTTP 200)
type Envelope struct {
	Error     string          `json:"error"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Warning   string          `json:"warning,omitempty"`
	Response  json.RawMessage `json:"response,omitempty"`
}

// ==================== Auth ====================

// TokenResp 换取/刷新 Token 响应 (字段位于顶层，无 response 包裹)
// POST /api/v2/auth/token/get
// POST /api/v2/auth/access_token/get
type TokenResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpireIn     int64  `json:"expire_in"`
	// RefreshExpireIn 平台一般不返回，缺省时由调用方套用默认有效期
	RefreshExpireIn int64   `json:"refresh_token_expire_in,omitempty"`
	PartnerID       int64   `json:"partner_id,omitempty"`
	ShopID          int64   `json:"shop_id,omitempty"`
	MerchantID      int64   `json:"merchant_id,omitempty"`
	ShopIDList      []int64 `json:"shop_id_list,omitempty"`
	MerchantIDList  []int64 `json:"merchant_id_list,omitempty"`
	RequestID       string  `json:"request_id"`
}

// ==================== Order ====================

// OrderListResp 订单列表响应
// GET /api/v2/order/get_order_list
type OrderListResp struct {
	More       bool           `json:"more"`
	NextCursor string         `json:"next_cursor"`
	OrderList  []OrderSummary `json:"order_list"`
}

// OrderSummary 订单列表项
type OrderSummary struct {
	OrderSN     string `json:"order_sn"`
	OrderStatus string `json:"order_status,omitempty"`
}

// orderDetailResp 订单详情响应
// GET /api/v2/order/get_order_detail
type orderDetailResp struct {
	OrderList []OrderDetail `json:"order_list"`
}

// OrderDetail 订单详情
type OrderDetail struct {
	OrderSN     string      `json:"order_sn"`
	OrderStatus string      `json:"order_status"`
	CreateTime  int64       `json:"create_time"`
	UpdateTime  int64       `json:"update_time"`
	ShipByDate  int64       `json:"ship_by_date"`
	DaysToShip  int         `json:"days_to_ship"`
	TotalAmount float64     `json:"total_amount"`
	Currency    string      `json:"currency"`
	BuyerUser   string      `json:"buyer_username,omitempty"`
	ItemList    []OrderItem `json:"item_list"`
}

// OrderItem 订单商品行
type OrderItem struct {
	ItemID                 int64     `json:"item_id"`
	ItemName               string    `json:"item_name"`
	ItemSKU                string    `json:"item_sku"`
	ModelID                int64     `json:"model_id"`
	ModelName              string    `json:"model_name"`
	ModelSKU               string    `json:"model_sku"`
	ModelQuantityPurchased int       `json:"model_quantity_purchased"`
	ModelDiscountedPrice   float64   `json:"model_discounted_price"`
	ImageInfo              ImageInfo `json:"image_info"`
}

// ImageInfo 商品图片
type ImageInfo struct {
	ImageURL string `json:"image_url"`
}

// ==================== Product ====================

// ItemListResp 商品列表响应
// GET /api/v2/product/get_item_list
type ItemListResp struct {
	Item        []ItemSummary `json:"item"`
	TotalCount  int           `json:"total_count"`
	HasNextPage bool          `json:"has_next_page"`
	NextOffset  int           `json:"next_offset"`
}

// ItemSummary 商品列表项
type ItemSummary struct {
	ItemID     int64  `json:"item_id"`
	ItemStatus string `json:"item_status"`
	UpdateTime int64  `json:"update_time"`
}

// itemBaseInfoResp 商品基础信息响应
// GET /api/v2/product/get_item_base_info
type itemBaseInfoResp struct {
	ItemList []ItemBaseInfo `json:"item_list"`
}

// ItemBaseInfo 商品基础信息
type ItemBaseInfo struct {
	ItemID     int64     `json:"item_id"`
	ItemName   string    `json:"item_name"`
	ItemSKU    string    `json:"item_sku"`
	ItemStatus string    `json:"item_status"`
	CategoryID int64     `json:"category_id"`
	HasModel   bool      `json:"has_model"`
	CreateTime int64     `json:"create_time"`
	UpdateTime int64     `json:"update_time"`
	Image      ItemImage `json:"image"`
}

// ItemImage 商品图片列表
type ItemImage struct {
	ImageURLList []string `json:"image_url_list"`
	ImageIDList  []string `json:"image_id_list"`
}
