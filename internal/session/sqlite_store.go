package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteStore はSQLiteのkvテーブルにトークンを保存するStore。
// キーはTokenKey固定で、行は常に最大1件。
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore はSQLiteStoreを生成する。
// dbはマイグレーション適用済みであること（database.OpenAndMigrate）。
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get は保存済みトークンを返す。
func (s *SQLiteStore) Get(ctx context.Context) (string, bool, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key = ?`,
		TokenKey,
	).Scan(&token)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read token: %w", err)
	}

	return token, true, nil
}

// Set はトークンを保存する。既存の値は上書きする。
func (s *SQLiteStore) Set(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at)
		 VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		TokenKey, token,
	)
	if err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

// Clear は保存済みトークンを削除する。
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE key = ?`,
		TokenKey,
	)
	if err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Store = (*SQLiteStore)(nil)
