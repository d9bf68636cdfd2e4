// Package session は認証トークンの永続スロットと、その読み書きを仲介するManagerを提供する。
package session

import (
	"context"
	"sync"
)

// TokenKey はトークンを保存する固定キー。
const TokenKey = "community_token"

// Store は認証トークン1件を保持する永続スロットのインターフェース。
type Store interface {
	// Get は保存済みトークンを返す。未保存の場合はok=falseを返す。
	Get(ctx context.Context) (token string, ok bool, err error)
	// Set はトークンを保存する。
	Set(ctx context.Context, token string) error
	// Clear は保存済みトークンを削除する。未保存でもエラーにしない。
	Clear(ctx context.Context) error
}

// MemoryStore はプロセス内にトークンを保持するStore。
// テストおよび永続化不要な実行で使用する。
type MemoryStore struct {
	mu    sync.Mutex
	token string
	ok    bool
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get は保存済みトークンを返す。
func (s *MemoryStore) Get(ctx context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.ok, nil
}

// Set はトークンを保存する。
func (s *MemoryStore) Set(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.ok = true
	return nil
}

// Clear は保存済みトークンを削除する。
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.ok = false
	return nil
}

// compile-time interface check
var _ Store = (*MemoryStore)(nil)
