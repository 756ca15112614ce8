package model

// Product 商品目录条目 (来自 get_item_base_info，不持久化)
type Product struct {
	ItemID     int64  `json:"item_id"`
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	Status     string `json:"status"`
	CategoryID int64  `json:"category_id"`
	HasModel   bool   `json:"has_model"`
	ImageURL   string `json:"image_url"`
	UpdateTime int64  `json:"update_time"`
}
