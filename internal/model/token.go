package model

import (
	"time"

	"gorm.io/datatypes"
)

// ==================== Token 状态 ====================

// TokenState Token 生命周期状态
type TokenState string

const (
	TokenStateNone           TokenState = "no_token"        // 未授权
	TokenStateValid          TokenState = "valid"           // 可直接使用
	TokenStateNearExpiry     TokenState = "near_expiry"     // 距过期不足阈值，需要刷新
	TokenStateAccessExpired  TokenState = "access_expired"  // access 已过期，refresh 仍有效
	TokenStateRefreshExpired TokenState = "refresh_expired" // 终态，需要重新授权
)

// NeedsRefresh 是否需要调用刷新接口
func (s TokenState) NeedsRefresh() bool {
	return s == TokenStateNearExpiry || s == TokenStateAccessExpired
}

// ==================== ShopeeToken ====================

// ShopeeToken 当前店铺的 OAuth 授权 (单店铺系统，最多一条有效记录)
type ShopeeToken struct {
	BaseModel
	ShopID     int64 `gorm:"uniqueIndex;not null" json:"shop_id"`
	MerchantID int64 `json:"merchant_id,omitempty"`

	AccessToken  string `gorm:"type:text;not null" json:"-"`
	RefreshToken string `gorm:"type:text;not null" json:"-"`

	// 时间字段均为 unix 秒
	AccessTTL       int64 `gorm:"not null" json:"access_ttl"`
	IssuedAt        int64 `gorm:"not null" json:"issued_at"`
	RefreshTTL      int64 `gorm:"not null" json:"refresh_ttl"`
	RefreshIssuedAt int64 `gorm:"not null" json:"refresh_issued_at"`

	// 平台原始响应，便于排查
	RawResponse datatypes.JSON `gorm:"type:jsonb" json:"-"`
}

func (ShopeeToken) TableName() string {
	return "shopee_tokens"
}

// AccessExpiresAt access_token 过期时刻
func (t *ShopeeToken) AccessExpiresAt() int64 {
	return t.IssuedAt + t.AccessTTL
}

// RefreshExpiresAt refresh_token 过期时刻
func (t *ShopeeToken) RefreshExpiresAt() int64 {
	return t.RefreshIssuedAt + t.RefreshTTL
}

// State 按当前时间判定状态
// 剩余有效期严格大于 threshold 才算 valid，恰好等于阈值时需要刷新
func (t *ShopeeToken) State(now time.Time, threshold time.Duration) TokenState {
	if t == nil || t.AccessToken == "" {
		return TokenStateNone
	}

	ts := now.Unix()
	if ts >= t.RefreshExpiresAt() {
		return TokenStateRefreshExpired
	}

	remaining := t.AccessExpiresAt() - ts
	switch {
	case remaining <= 0:
		return TokenStateAccessExpired
	case remaining <= int64(threshold/time.Second):
		return TokenStateNearExpiry
	default:
		return TokenStateValid
	}
}

// TokenVersion 一条 Token 记录的版本，CAS 比较用
// issued_at 只有秒级精度，同一秒内的两次写入需靠 refresh_token 区分
type TokenVersion struct {
	IssuedAt     int64
	RefreshToken string
}

// Version 当前记录的版本
func (t *ShopeeToken) Version() TokenVersion {
	return TokenVersion{IssuedAt: t.IssuedAt, RefreshToken: t.RefreshToken}
}

// Matches 记录是否仍处于版本 v
func (t *ShopeeToken) Matches(v TokenVersion) bool {
	return t != nil && t.IssuedAt == v.IssuedAt && t.RefreshToken == v.RefreshToken
}

// Clone 深拷贝，避免调用方修改存储中的记录
func (t *ShopeeToken) Clone() *ShopeeToken {
	if t == nil {
		return nil
	}
	c := *t
	if t.RawResponse != nil {
		c.RawResponse = append(datatypes.JSON(nil), t.RawResponse...)
	}
	return &c
}
