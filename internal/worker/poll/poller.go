// Package poll はサーバープッシュの代わりに一定間隔で再取得するポーラーを提供する。
package poll

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/shequ/internal/metrics"
)

// DefaultInterval は間隔が指定されなかった場合のポーリング間隔。
const DefaultInterval = 10 * time.Second

// FetchFunc は1回分の取得処理。
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Updates は更新の購読インターフェース。
// Runはctxがキャンセルされるまで更新をdeliverに渡し続ける。
// Pollerが実装し、プッシュ型の実装に差し替えられる。
type Updates[T any] interface {
	Run(ctx context.Context, deliver func(T))
}

// Poller は固定間隔でFetchFuncを実行し、結果を配信する。
// 失敗時はログとメトリクスに記録し、次のティックで再試行する。
// バックオフやジッターは行わない。
type Poller[T any] struct {
	name     string
	interval time.Duration
	fetch    FetchFunc[T]
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
}

// New はPollerの新しいインスタンスを生成する。
// intervalが0以下の場合はDefaultIntervalを使用する。
func New[T any](
	name string,
	interval time.Duration,
	fetch FetchFunc[T],
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Poller[T] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Poller[T]{
		name:     name,
		interval: interval,
		fetch:    fetch,
		logger:   logger,
		metrics:  collector,
	}
}

// Interval はポーリング間隔を返す。
func (p *Poller[T]) Interval() time.Duration {
	return p.interval
}

// Run は起動直後に1回取得し、以降はティッカーの間隔で取得を繰り返す。
// コンテキストがキャンセルされるまで実行を継続する。
func (p *Poller[T]) Run(ctx context.Context, deliver func(T)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Debug("ポーリングを開始しました",
		slog.String("poller", p.name),
		slog.Duration("interval", p.interval),
	)

	// 起動直後に1回実行
	p.RunOnce(ctx, deliver)

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("ポーリングを停止しました", slog.String("poller", p.name))
			return
		case <-ticker.C:
			p.RunOnce(ctx, deliver)
		}
	}
}

// RunOnce は1回取得し、成功した場合に結果を配信する。
// キャンセル後に完了した取得結果は配信しない。
func (p *Poller[T]) RunOnce(ctx context.Context, deliver func(T)) error {
	v, err := p.fetch(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		p.metrics.RecordPollFailure(p.name)
		p.logger.Error("ポーリングに失敗しました",
			slog.String("poller", p.name),
			slog.String("error", err.Error()),
		)
		return err
	}

	p.metrics.RecordPollSuccess(p.name)
	deliver(v)
	return nil
}

// IsStopped はRunOnceのエラーがキャンセルによるものかを返す。
func IsStopped(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
