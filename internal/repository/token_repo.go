package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"shopee_order_v1/internal/model"
)

// ==================== 接口定义 ====================

// TokenStore 当前 Token 的持久化接口 (至多一条当前记录)
type TokenStore interface {
	// Save 替换当前记录
	Save(ctx context.Context, tok *model.ShopeeToken) error
	// Load 无记录时返回 nil, nil
	Load(ctx context.Context) (*model.ShopeeToken, error)
	// Clear 删除当前记录，强制重新授权
	Clear(ctx context.Context) error
	// CompareAndSwap 仅当存储中的记录仍处于 expected 版本 (issued_at + refresh_token) 时写入
	CompareAndSwap(ctx context.Context, expected model.TokenVersion, tok *model.ShopeeToken) (bool, error)
}

// ==================== 仓储实现 ====================

type tokenRepo struct {
	db *gorm.DB
}

// NewTokenRepository 创建基于数据库的 TokenStore
func NewTokenRepository(db *gorm.DB) TokenStore {
	return &tokenRepo{db: db}
}

func (r *tokenRepo) Save(ctx context.Context, tok *model.ShopeeToken) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("1 = 1").Delete(&model.ShopeeToken{}).Error; err != nil {
			return err
		}

		row := tok.Clone()
		row.ID = 0
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		tok.ID = row.ID
		return nil
	})
}

func (r *tokenRepo) Load(ctx context.Context) (*model.ShopeeToken, error) {
	var tok model.ShopeeToken
	err := r.db.WithContext(ctx).Order("id DESC").First(&tok).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (r *tokenRepo) Clear(ctx context.Context) error {
	return r.db.WithContext(ctx).Unscoped().Where("1 = 1").Delete(&model.ShopeeToken{}).Error
}

// CompareAndSwap 条件更新，单条 UPDATE 保证原子性
func (r *tokenRepo) CompareAndSwap(ctx context.Context, expected model.TokenVersion, tok *model.ShopeeToken) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ShopeeToken{}).
		Where("issued_at = ? AND refresh_token = ?", expected.IssuedAt, expected.RefreshToken).
		Updates(map[string]interface{}{
			"shop_id":           tok.ShopID,
			"merchant_id":       tok.MerchantID,
			"access_token":      tok.AccessToken,
			"refresh_token":     tok.RefreshToken,
			"access_ttl":        tok.AccessTTL,
			"issued_at":         tok.IssuedAt,
			"refresh_ttl":       tok.RefreshTTL,
			"refresh_issued_at": tok.RefreshIssuedAt,
			"raw_response":      tok.RawResponse,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
