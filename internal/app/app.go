package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/shequ/internal/api"
	"github.com/hitoshi/shequ/internal/config"
	"github.com/hitoshi/shequ/internal/database"
	"github.com/hitoshi/shequ/internal/gateway"
	"github.com/hitoshi/shequ/internal/logger"
	"github.com/hitoshi/shequ/internal/mapper"
	"github.com/hitoshi/shequ/internal/metrics"
	"github.com/hitoshi/shequ/internal/model"
	"github.com/hitoshi/shequ/internal/security"
	"github.com/hitoshi/shequ/internal/session"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// CLIでは標準出力を描画に使うため、ログはwに出力する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("SHEQU_LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はCLIのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、描画をout、ログをlogwに出力する。
// argsにはos.Args[1:]を渡す。
func Run(out, logw io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// help は初期化不要のためスキップする
	switch cmd {
	case CommandHelp:
		printUsage(out)
		return nil
	case CommandUnknown:
		printUsage(out)
		return fmt.Errorf("unknown command: %q", args[0])
	}

	cfg, err := Init(logw)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := New(ctx, cfg, out, slog.Default())
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer a.Close()

	slog.Debug("running command",
		slog.String("command", string(cmd)),
		slog.String("origin", cfg.ServerOrigin),
		slog.String("token_store", cfg.TokenStore),
	)

	return a.Execute(ctx, cmd, args[1:])
}

// FormatError はエラーをユーザー向けの2行のメッセージに変換する。
func FormatError(err error) string {
	d := model.Describe(err)
	return fmt.Sprintf("error: %s\nhint: %s", d.Message, d.Action)
}

// App は1回のコマンド実行に必要な依存関係を保持する。
type App struct {
	cfg       *config.Config
	out       io.Writer
	logger    *slog.Logger
	session   *session.Manager
	service   *api.Service
	media     *security.MediaDownloader
	sanitizer security.TextSanitizer
	registry  *prometheus.Registry
	collector *metrics.Collector
	now       func() time.Time
	closers   []func() error
}

// New は全依存関係をワイヤリングしたAppを生成する。
// トークンスロットは起動時に1回だけ読み込む。
func New(ctx context.Context, cfg *config.Config, out io.Writer, log *slog.Logger) (*App, error) {
	a := &App{
		cfg:       cfg,
		out:       out,
		logger:    log,
		sanitizer: security.NewTextSanitizer(),
		registry:  prometheus.NewRegistry(),
		now:       time.Now,
	}

	// 1. トークンスロット
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	a.session = session.NewManager(store, log)
	if err := a.session.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	// 2. メトリクス
	a.collector = metrics.NewCollector(a.registry)

	// 3. HTTPゲートウェイ
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	gw := gateway.NewClient(httpClient, a.session, log, a.collector, gateway.ClientConfig{
		BaseURL:   cfg.APIBaseURL(),
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	})

	// 4. ドメインファサード
	a.service = api.NewService(gw, a.session, mapper.New(cfg.ServerOrigin), log)

	// 5. メディア取得
	a.media, err = security.NewMediaDownloader(
		cfg.ServerOrigin, httpClient, security.NewSSRFGuard(),
		cfg.MediaTimeout, cfg.MediaMaxSize, log,
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// openStore は設定に応じたトークンスロットを開く。
func (a *App) openStore() (session.Store, error) {
	switch a.cfg.TokenStore {
	case config.TokenStoreMemory:
		return session.NewMemoryStore(), nil
	default:
		db, err := database.OpenAndMigrate(a.cfg.TokenDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open token store: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		return session.NewSQLiteStore(db), nil
	}
}

// Close は保持しているリソースを解放する。
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// serveMetrics はMetricsAddrが設定されている場合に/metricsを公開する。
// 返される関数でサーバーを停止する。
func (a *App) serveMetrics() func() {
	if a.cfg.MetricsAddr == "" {
		return func() {}
	}

	server := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           metrics.SetupMetricsRoute(a.registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("metrics server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			a.logger.Error("metrics server shutdown failed", slog.String("error", err.Error()))
		}
	}
}
