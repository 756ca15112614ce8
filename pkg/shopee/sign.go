package shopee

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// Scope 签名作用域，决定 base string 末尾追加的内容
type Scope int

const (
	// ScopePublic 公共接口: partner_id + path + timestamp
	ScopePublic Scope = iota
	// ScopeShop 店铺接口: 追加 access_token + shop_id
	ScopeShop
	// ScopeMerchant 商户接口: 追加 access_token + merchant_id
	ScopeMerchant
)

// ErrInvalidScope 未知签名作用域 (调用方编程错误，不重试)
var ErrInvalidScope = errors.New("shopee: invalid sign scope")

func (s Scope) String() string {
	switch s {
	case ScopePublic:
		return "public"
	case ScopeShop:
		return "shop"
	case ScopeMerchant:
		return "merchant"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Sign 计算 Shopee 开放平台请求签名
// scopeID: ScopeShop 时为 shop_id，ScopeMerchant 时为 merchant_id，ScopePublic 时忽略
// 返回小写 hex 格式的 HMAC-SHA256 摘要
func Sign(partnerKey string, partnerID int64, path string, timestamp int64, scope Scope, accessToken string, scopeID int64) (string, error) {
	base, err := BaseString(partnerID, path, timestamp, scope, accessToken, scopeID)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, []byte(partnerKey))
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// BaseString 拼接待签名字符串
func BaseString(partnerID int64, path string, timestamp int64, scope Scope, accessToken string, scopeID int64) (string, error) {
	base := strconv.FormatInt(partnerID, 10) + path + strconv.FormatInt(timestamp, 10)

	switch scope {
	case ScopePublic:
		return base, nil
	case ScopeShop, ScopeMerchant:
		return base + accessToken + strconv.FormatInt(scopeID, 10), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidScope, scope)
	}
}

// Signer 绑定合作伙伴凭证的签名器
type Signer struct {
	partnerID  int64
	partnerKey string
}

func NewSigner(partnerID int64, partnerKey string) *Signer {
	return &Signer{partnerID: partnerID, partnerKey: partnerKey}
}

// PartnerID 返回签名使用的 partner_id
func (s *Signer) PartnerID() int64 {
	return s.partnerID
}

// Sign 使用绑定的凭证计算签名
func (s *Signer) Sign(path string, timestamp int64, scope Scope, accessToken string, scopeID int64) (string, error) {
	return Sign(s.partnerKey, s.partnerID, path, timestamp, scope, accessToken, scopeID)
}
