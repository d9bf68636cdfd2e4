package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open はローカルのSQLiteデータベースを開く。
// 親ディレクトリが存在しない場合は作成する。
// sql.Openは接続を試行しないため、Pingで実際に開けることを確認してから返す。
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// トークン1件のみを扱うため単一接続で十分
	db.SetMaxOpenConns(1)

	return db, nil
}
