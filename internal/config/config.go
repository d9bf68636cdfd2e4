package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// トークン保存先の種類
const (
	TokenStoreSQLite = "sqlite"
	TokenStoreMemory = "memory"
)

// Config はクライアント全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerOrigin string
	APIPrefix    string

	// Session
	TokenStore  string
	TokenDBPath string

	// HTTP
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int

	// Polling
	ConversationPollInterval time.Duration
	ChatPollInterval         time.Duration

	// Media
	MediaMaxSize int64
	MediaTimeout time.Duration

	// Observability
	MetricsAddr string
	LogLevel    string
}

// APIBaseURL はAPIエンドポイントの基底URLを返す。
func (c *Config) APIBaseURL() string {
	return c.ServerOrigin + c.APIPrefix
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.ServerOrigin = strings.TrimRight(os.Getenv("SHEQU_SERVER_ORIGIN"), "/")
	if cfg.ServerOrigin == "" {
		missing = append(missing, "SHEQU_SERVER_ORIGIN")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if !strings.HasPrefix(cfg.ServerOrigin, "http://") && !strings.HasPrefix(cfg.ServerOrigin, "https://") {
		return nil, fmt.Errorf("SHEQU_SERVER_ORIGIN must start with http:// or https://: %q", cfg.ServerOrigin)
	}

	// Optional fields with defaults
	cfg.APIPrefix = normalizePrefix(getEnvString("SHEQU_API_PREFIX", "/api/v1"))
	cfg.TokenStore = getEnvString("SHEQU_TOKEN_STORE", TokenStoreSQLite)
	cfg.TokenDBPath = getEnvString("SHEQU_TOKEN_DB", defaultTokenDBPath())
	cfg.RequestTimeout = getEnvDuration("SHEQU_REQUEST_TIMEOUT", 15*time.Second)
	cfg.RateLimit = getEnvFloat("SHEQU_RATE_LIMIT", 0)
	cfg.RateBurst = getEnvInt("SHEQU_RATE_BURST", 5)
	cfg.ConversationPollInterval = getEnvDuration("SHEQU_CONVERSATION_POLL_INTERVAL", 10*time.Second)
	cfg.ChatPollInterval = getEnvDuration("SHEQU_CHAT_POLL_INTERVAL", 5*time.Second)
	cfg.MediaMaxSize = getEnvInt64("SHEQU_MEDIA_MAX_SIZE", 10<<20)
	cfg.MediaTimeout = getEnvDuration("SHEQU_MEDIA_TIMEOUT", 20*time.Second)
	cfg.MetricsAddr = getEnvString("SHEQU_METRICS_ADDR", "")
	cfg.LogLevel = getEnvString("SHEQU_LOG_LEVEL", "info")

	switch cfg.TokenStore {
	case TokenStoreSQLite, TokenStoreMemory:
	default:
		return nil, fmt.Errorf("unsupported SHEQU_TOKEN_STORE: %q (allowed: %s, %s)",
			cfg.TokenStore, TokenStoreSQLite, TokenStoreMemory)
	}

	return cfg, nil
}

// normalizePrefix はAPIプレフィックスを "/xxx" 形式（末尾スラッシュなし）に揃える。
func normalizePrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// defaultTokenDBPath はホームディレクトリ配下の既定のトークン保存先を返す。
func defaultTokenDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".shequ", "session.db")
	}
	return filepath.Join(home, ".shequ", "session.db")
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
