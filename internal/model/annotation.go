package model

import "time"

// OrderAnnotation 商家在订单商品行上的人工标注
// 主键 (order_sn, product_name, item_spec)；旧版两段式数据以 item_spec = "" 存在
type OrderAnnotation struct {
	OrderSN     string `gorm:"primaryKey;size:64" json:"order_sn"`
	ProductName string `gorm:"primaryKey;size:255" json:"product_name"`
	ItemSpec    string `gorm:"primaryKey;size:255" json:"item_spec"`

	Received          bool   `gorm:"not null" json:"received"`
	MissingCount      int    `gorm:"not null" json:"missing_count"`
	Note              string `gorm:"type:text" json:"note"`
	Tag               string `gorm:"size:64" json:"tag"`
	ReferenceImageURL string `gorm:"size:1024" json:"reference_image_url"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OrderAnnotation) TableName() string {
	return "order_annotations"
}

// AnnotationKey 标注关联键
type AnnotationKey struct {
	OrderSN     string
	ProductName string
	ItemSpec    string
}

// Key 完整三段键
func (a *OrderAnnotation) Key() AnnotationKey {
	return AnnotationKey{OrderSN: a.OrderSN, ProductName: a.ProductName, ItemSpec: a.ItemSpec}
}

// Legacy 对应的旧版两段键
func (k AnnotationKey) Legacy() AnnotationKey {
	return AnnotationKey{OrderSN: k.OrderSN, ProductName: k.ProductName}
}
