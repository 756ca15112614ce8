package model

import "time"

// OrderWindow 单次 get_order_list 查询的时间窗口，不持久化
type OrderWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Duration 窗口跨度
func (w OrderWindow) Duration() time.Duration {
	return w.To.Sub(w.From)
}

// OrderRow 看板行: 订单商品行 + 标注 (一个商品行一条)
type OrderRow struct {
	OrderSN     string `json:"order_sn"`
	OrderStatus string `json:"order_status"`
	CreateTime  int64  `json:"create_time"`
	ShipByDate  int64  `json:"ship_by_date"`

	ProductName string `json:"product_name"`
	ItemSKU     string `json:"item_sku"`
	ItemSpec    string `json:"item_spec"`
	Quantity    int    `json:"quantity"`
	ImageURL    string `json:"image_url"`

	Received          bool   `json:"received"`
	MissingCount      int    `json:"missing_count"`
	Note              string `json:"note"`
	Tag               string `json:"tag"`
	ReferenceImageURL string `json:"reference_image_url"`
}

// AnnotationKey 行对应的标注键
func (r *OrderRow) AnnotationKey() AnnotationKey {
	return AnnotationKey{OrderSN: r.OrderSN, ProductName: r.ProductName, ItemSpec: r.ItemSpec}
}
