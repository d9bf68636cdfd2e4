package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manager は認証トークンをメモリ上にキャッシュし、Storeへの書き込みを仲介する。
// 起動時にLoadで1回だけ読み込み、以降の読み取りはキャッシュから返す。
// ポーリングのgoroutineと並行に使われるため、読み書きはロックで保護する。
type Manager struct {
	store  Store
	logger *slog.Logger

	mu    sync.RWMutex
	token string
}

// NewManager はManagerの新しいインスタンスを生成する。
func NewManager(store Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
	}
}

// Load はStoreから保存済みトークンを読み込む。
// 初回起動などで未保存の場合は未認証状態のまま返る。
func (m *Manager) Load(ctx context.Context) error {
	token, ok, err := m.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.token = token
	} else {
		m.token = ""
	}
	return nil
}

// Token は現在のトークンを返す。未認証の場合は空文字列を返す。
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Authenticated はトークンを保持している場合にtrueを返す。
func (m *Manager) Authenticated() bool {
	return m.Token() != ""
}

// Set はトークンを永続化し、以降の呼び出しに付与されるようにする。
// 永続化に失敗した場合はメモリ上の値も更新しない。
func (m *Manager) Set(ctx context.Context, token string) error {
	if err := m.store.Set(ctx, token); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	m.logger.Info("session stored")
	return nil
}

// Clear はトークンを破棄する。
// 永続スロットの削除に失敗してもメモリ上のトークンは必ず破棄する。
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("failed to clear persisted session",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to clear session: %w", err)
	}

	m.logger.Info("session cleared")
	return nil
}
