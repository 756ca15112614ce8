package repository

import (
	"context"
	"sync"

	"shopee_order_v1/internal/model"
)

// memoryTokenStore 进程内 TokenStore，重启即丢失，用于开发与测试
type memoryTokenStore struct {
	mu  sync.Mutex
	tok *model.ShopeeToken
}

// NewMemoryTokenStore 创建内存 TokenStore
func NewMemoryTokenStore() TokenStore {
	return &memoryTokenStore{}
}

func (s *memoryTokenStore) Save(_ context.Context, tok *model.ShopeeToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = tok.Clone()
	return nil
}

func (s *memoryTokenStore) Load(_ context.Context) (*model.ShopeeToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tok.Clone(), nil
}

func (s *memoryTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = nil
	return nil
}

func (s *memoryTokenStore) CompareAndSwap(_ context.Context, expected model.TokenVersion, tok *model.ShopeeToken) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tok.Matches(expected) {
		return false, nil
	}
	s.tok = tok.Clone()
	return true, nil
}
