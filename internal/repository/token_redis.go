package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"shopee_order_v1/internal/model"
)

// DefaultTokenKey Redis 中当前 Token 的键
const DefaultTokenKey = "shopee:token:current"

// redisTokenRecord Redis 序列化结构 (model 中的令牌字段不参与 JSON 输出)
type redisTokenRecord struct {
	ShopID          int64           `json:"shop_id"`
	MerchantID      int64           `json:"merchant_id,omitempty"`
	AccessToken     string          `json:"access_token"`
	RefreshToken    string          `json:"refresh_token"`
	AccessTTL       int64           `json:"access_ttl"`
	IssuedAt        int64           `json:"issued_at"`
	RefreshTTL      int64           `json:"refresh_ttl"`
	RefreshIssuedAt int64           `json:"refresh_issued_at"`
	RawResponse     json.RawMessage `json:"raw_response,omitempty"`
}

func toRedisRecord(t *model.ShopeeToken) redisTokenRecord {
	return redisTokenRecord{
		ShopID:          t.ShopID,
		MerchantID:      t.MerchantID,
		AccessToken:     t.AccessToken,
		RefreshToken:    t.RefreshToken,
		AccessTTL:       t.AccessTTL,
		IssuedAt:        t.IssuedAt,
		RefreshTTL:      t.RefreshTTL,
		RefreshIssuedAt: t.RefreshIssuedAt,
		RawResponse:     json.RawMessage(t.RawResponse),
	}
}

func (r redisTokenRecord) toModel() *model.ShopeeToken {
	return &model.ShopeeToken{
		ShopID:          r.ShopID,
		MerchantID:      r.MerchantID,
		AccessToken:     r.AccessToken,
		RefreshToken:    r.RefreshToken,
		AccessTTL:       r.AccessTTL,
		IssuedAt:        r.IssuedAt,
		RefreshTTL:      r.RefreshTTL,
		RefreshIssuedAt: r.RefreshIssuedAt,
		RawResponse:     []byte(r.RawResponse),
	}
}

// redisTokenStore 基于 Redis 的 TokenStore，CAS 使用 WATCH/MULTI
type redisTokenStore struct {
	client *redis.Client
	key    string
}

// NewRedisTokenStore key 为空时使用 DefaultTokenKey
func NewRedisTokenStore(client *redis.Client, key string) TokenStore {
	if key == "" {
		key = DefaultTokenKey
	}
	return &redisTokenStore{client: client, key: key}
}

func (s *redisTokenStore) Save(ctx context.Context, tok *model.ShopeeToken) error {
	payload, err := json.Marshal(toRedisRecord(tok))
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return s.client.Set(ctx, s.key, payload, 0).Err()
}

func (s *redisTokenStore) Load(ctx context.Context) (*model.ShopeeToken, error) {
	return s.load(ctx, s.client)
}

func (s *redisTokenStore) load(ctx context.Context, c redis.Cmdable) (*model.ShopeeToken, error) {
	raw, err := c.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec redisTokenRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return rec.toModel(), nil
}

func (s *redisTokenStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

func (s *redisTokenStore) CompareAndSwap(ctx context.Context, expected model.TokenVersion, tok *model.ShopeeToken) (bool, error) {
	payload, err := json.Marshal(toRedisRecord(tok))
	if err != nil {
		return false, fmt.Errorf("encode token: %w", err)
	}

	swapped := false
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := s.load(ctx, tx)
		if err != nil {
			return err
		}
		if !cur.Matches(expected) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, payload, 0)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}, s.key)

	// 期间键被其他客户端修改
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return swapped, nil
}
