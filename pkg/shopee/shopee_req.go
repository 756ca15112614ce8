package shopee

import (
	"net/url"
	"strconv"
	"strings"
)

// API 路径
const (
	PathAuthPartner    = "/api/v2/shop/auth_partner"
	PathTokenGet       = "/api/v2/auth/token/get"
	PathAccessTokenGet = "/api/v2/auth/access_token/get"
	PathOrderList      = "/api/v2/order/get_order_list"
	PathOrderDetail    = "/api/v2/order/get_order_detail"
	PathItemList       = "/api/v2/product/get_item_list"
	PathItemBaseInfo   = "/api/v2/product/get_item_base_info"
)

// 平台限制
const (
	MaxOrderWindowDays = 15  // get_order_list 单次时间跨度上限
	MaxOrderPageSize   = 100 // get_order_list page_size 上限
	MaxDetailBatch     = 50  // get_order_detail / get_item_base_info 单次 ID 数上限
	MaxItemPageSize    = 100 // get_item_list page_size 上限
)

// tokenGetReq 换取 Token 请求体
type tokenGetReq struct {
	Code      string `json:"code"`
	ShopID    int64  `json:"shop_id"`
	PartnerID int64  `json:"partner_id"`
}

// accessTokenGetReq 刷新 Token 请求体
type accessTokenGetReq struct {
	RefreshToken string `json:"refresh_token"`
	ShopID       int64  `json:"shop_id"`
	PartnerID    int64  `json:"partner_id"`
}

// OrderListReq 订单列表查询参数
type OrderListReq struct {
	TimeRangeField string // create_time / update_time，默认 create_time
	TimeFrom       int64
	TimeTo         int64
	PageSize       int
	Cursor         string // 首页为空
	OrderStatus    string // 为空表示不过滤
}

func (r OrderListReq) values() url.Values {
	v := url.Values{}
	field := r.TimeRangeField
	if field == "" {
		field = "create_time"
	}
	v.Set("time_range_field", field)
	v.Set("time_from", strconv.FormatInt(r.TimeFrom, 10))
	v.Set("time_to", strconv.FormatInt(r.TimeTo, 10))

	size := r.PageSize
	if size <= 0 || size > MaxOrderPageSize {
		size = MaxOrderPageSize
	}
	v.Set("page_size", strconv.Itoa(size))
	if r.Cursor != "" {
		v.Set("cursor", r.Cursor)
	}
	if r.OrderStatus != "" {
		v.Set("order_status", r.OrderStatus)
	}
	v.Set("response_optional_fields", "order_status")
	return v
}

// ItemListReq 商品列表查询参数
type ItemListReq struct {
	Offset     int
	PageSize   int
	ItemStatus []string // 默认 NORMAL
}

func (r ItemListReq) values() url.Values {
	v := url.Values{}
	v.Set("offset", strconv.Itoa(r.Offset))

	size := r.PageSize
	if size <= 0 || size > MaxItemPageSize {
		size = MaxItemPageSize
	}
	v.Set("page_size", strconv.Itoa(size))

	statuses := r.ItemStatus
	if len(statuses) == 0 {
		statuses = []string{"NORMAL"}
	}
	for _, s := range statuses {
		v.Add("item_status", s)
	}
	return v
}

func orderDetailValues(orderSNs []string) url.Values {
	v := url.Values{}
	v.Set("order_sn_list", strings.Join(orderSNs, ","))
	v.Set("response_optional_fields", "item_list,total_amount,buyer_username")
	return v
}

func itemBaseInfoValues(itemIDs []int64) url.Values {
	ids := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	v := url.Values{}
	v.Set("item_id_list", strings.Join(ids, ","))
	return v
}
