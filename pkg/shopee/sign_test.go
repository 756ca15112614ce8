package shopee

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPartnerID  int64 = 2001887
	testPartnerKey       = "test_key"
	testTimestamp  int64 = 1655714431
)

func TestBaseString_Public(t *testing.T) {
	base, err := BaseString(testPartnerID, PathAuthPartner, testTimestamp, ScopePublic, "ignored", 99)
	require.NoError(t, err)
	assert.Equal(t, "2001887/api/v2/shop/auth_partner1655714431", base)
}

func TestBaseString_ShopAndMerchant(t *testing.T) {
	shop, err := BaseString(testPartnerID, PathOrderList, testTimestamp, ScopeShop, "tok", 123456)
	require.NoError(t, err)
	assert.Equal(t, "2001887/api/v2/order/get_order_list1655714431tok123456", shop)

	merchant, err := BaseString(testPartnerID, PathOrderList, testTimestamp, ScopeMerchant, "tok", 123456)
	require.NoError(t, err)
	assert.Equal(t, shop, merchant)
}

func TestSign_KnownVectors(t *testing.T) {
	sign, err := Sign(testPartnerKey, testPartnerID, PathAuthPartner, testTimestamp, ScopePublic, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "b2195a35bb23785e0fbfe0a44b650b9590d35562292e336ea84c6622346201bf", sign)

	sign, err = Sign(testPartnerKey, testPartnerID, PathOrderList, testTimestamp, ScopeShop, "tok", 123456)
	require.NoError(t, err)
	assert.Equal(t, "076c2f1e3ab665a1e2f073afb78b041ebd7806fb820b3431bccecf61fc33dc79", sign)
}

func TestSign_Deterministic(t *testing.T) {
	a, err := Sign(testPartnerKey, testPartnerID, PathOrderDetail, testTimestamp, ScopeShop, "tok", 1)
	require.NoError(t, err)
	b, err := Sign(testPartnerKey, testPartnerID, PathOrderDetail, testTimestamp, ScopeShop, "tok", 1)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", a)
}

func TestSign_InputsChangeDigest(t *testing.T) {
	base, _ := Sign(testPartnerKey, testPartnerID, PathOrderList, testTimestamp, ScopeShop, "tok", 1)

	cases := map[string]func() (string, error){
		"key":       func() (string, error) { return Sign("other", testPartnerID, PathOrderList, testTimestamp, ScopeShop, "tok", 1) },
		"timestamp": func() (string, error) { return Sign(testPartnerKey, testPartnerID, PathOrderList, testTimestamp+1, ScopeShop, "tok", 1) },
		"path":      func() (string, error) { return Sign(testPartnerKey, testPartnerID, PathOrderDetail, testTimestamp, ScopeShop, "tok", 1) },
		"token":     func() (string, error) { return Sign(testPartnerKey, testPartnerID, PathOrderList, testTimestamp, ScopeShop, "tok2", 1) },
		"shop_id":   func() (string, error) { return Sign(testPartnerKey, testPartnerID, PathOrderList, testTimestamp, ScopeShop, "tok", 2) },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := fn()
			require.NoError(t, err)
			assert.NotEqual(t, base, got)
		})
	}
}

func TestSign_InvalidScope(t *testing.T) {
	_, err := Sign(testPartnerKey, testPartnerID, PathOrderList, testTimestamp, Scope(42), "tok", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidScope))
}

func TestSigner_MatchesFunction(t *testing.T) {
	s := NewSigner(testPartnerID, testPartnerKey)
	assert.Equal(t, testPartnerID, s.PartnerID())

	got, err := s.Sign(PathAuthPartner, testTimestamp, ScopePublic, "", 0)
	require.NoError(t, err)
	want, _ := Sign(testPartnerKey, testPartnerID, PathAuthPartner, testTimestamp, ScopePublic, "", 0)
	assert.Equal(t, want, got)
}
