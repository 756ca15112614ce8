package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestToken(now time.Time, remaining int64) *ShopeeToken {
	return &ShopeeToken{
		AccessToken:     "at",
		RefreshToken:    "rt",
		AccessTTL:       14400,
		IssuedAt:        now.Unix() + remaining - 14400,
		RefreshTTL:      31536000,
		RefreshIssuedAt: now.Unix() - 3600,
	}
}

func TestShopeeToken_StateThreshold(t *testing.T) {
	now := time.Unix(1700000000, 0)
	threshold := 300 * time.Second

	cases := []struct {
		remaining int64
		want      TokenState
	}{
		{3600, TokenStateValid},
		{301, TokenStateValid},
		{300, TokenStateNearExpiry},
		{299, TokenStateNearExpiry},
		{1, TokenStateNearExpiry},
		{0, TokenStateAccessExpired},
		{-86000, TokenStateAccessExpired},
	}
	for _, tc := range cases {
		got := newTestToken(now, tc.remaining).State(now, threshold)
		assert.Equal(t, tc.want, got, "remaining=%d", tc.remaining)
	}
}

func TestShopeeToken_RefreshExpired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tok := newTestToken(now, 3600)
	tok.RefreshIssuedAt = now.Unix() - tok.RefreshTTL

	// 边界: now == refresh_issued_at + refresh_ttl 即视为过期
	assert.Equal(t, TokenStateRefreshExpired, tok.State(now, 300*time.Second))

	tok.RefreshIssuedAt++
	assert.Equal(t, TokenStateValid, tok.State(now, 300*time.Second))
}

func TestShopeeToken_NoToken(t *testing.T) {
	var tok *ShopeeToken
	assert.Equal(t, TokenStateNone, tok.State(time.Now(), 0))
	assert.Equal(t, TokenStateNone, (&ShopeeToken{}).State(time.Now(), 0))
}

func TestTokenState_NeedsRefresh(t *testing.T) {
	assert.True(t, TokenStateNearExpiry.NeedsRefresh())
	assert.True(t, TokenStateAccessExpired.NeedsRefresh())
	assert.False(t, TokenStateValid.NeedsRefresh())
	assert.False(t, TokenStateRefreshExpired.NeedsRefresh())
	assert.False(t, TokenStateNone.NeedsRefresh())
}

func TestShopeeToken_Clone(t *testing.T) {
	orig := &ShopeeToken{AccessToken: "a", RawResponse: []byte(`{"x":1}`)}
	c := orig.Clone()
	c.AccessToken = "b"
	c.RawResponse[0] = '['

	assert.Equal(t, "a", orig.AccessToken)
	assert.Equal(t, byte('{'), orig.RawResponse[0])
	assert.Nil(t, (*ShopeeToken)(nil).Clone())
}

func TestShopeeToken_Matches(t *testing.T) {
	tok := &ShopeeToken{IssuedAt: 1000, RefreshToken: "rt-1"}
	v := tok.Version()

	assert.True(t, tok.Matches(v))
	assert.False(t, (&ShopeeToken{IssuedAt: 1000, RefreshToken: "rt-2"}).Matches(v))
	assert.False(t, (&ShopeeToken{IssuedAt: 1001, RefreshToken: "rt-1"}).Matches(v))
	assert.False(t, (*ShopeeToken)(nil).Matches(v))
}

func TestAnnotationKey_Legacy(t *testing.T) {
	a := &OrderAnnotation{OrderSN: "A1", ProductName: "Mug", ItemSpec: "Blue"}
	assert.Equal(t, AnnotationKey{OrderSN: "A1", ProductName: "Mug"}, a.Key().Legacy())
}
