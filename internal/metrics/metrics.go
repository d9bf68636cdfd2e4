// Package metrics はPrometheusメトリクスの収集と公開を提供する。
// クライアントのAPI呼び出しとポーリングの状況を記録する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ゲートウェイやポーラーから利用する。
type MetricsCollector interface {
	RecordRequest(method string, statusCode int, duration time.Duration)
	RecordNetworkFailure(method string)
	RecordForcedLogout()
	RecordPollSuccess(poller string)
	RecordPollFailure(poller string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	requests        *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	networkFailures *prometheus.CounterVec
	forcedLogouts   prometheus.Counter
	pollSuccess     *prometheus.CounterVec
	pollFail        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shequ_api_requests_total",
			Help: "メソッド・ステータスコード別のAPIリクエスト数",
		}, []string{"method", "status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shequ_api_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		networkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shequ_api_network_failures_total",
			Help: "レスポンスを受信できなかったAPIリクエスト数",
		}, []string{"method"}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shequ_session_forced_logouts_total",
			Help: "認証失敗によりセッションを破棄した回数",
		}),
		pollSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shequ_poll_success_total",
			Help: "ポーラー別のポーリング成功数",
		}, []string{"poller"}),
		pollFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shequ_poll_fail_total",
			Help: "ポーラー別のポーリング失敗数",
		}, []string{"poller"}),
	}

	reg.MustRegister(
		c.requests,
		c.requestLatency,
		c.networkFailures,
		c.forcedLogouts,
		c.pollSuccess,
		c.pollFail,
	)

	return c
}

// RecordRequest はレスポンスを受信したAPIリクエストを記録する。
func (c *Collector) RecordRequest(method string, statusCode int, duration time.Duration) {
	c.requests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.requestLatency.Observe(duration.Seconds())
}

// RecordNetworkFailure は通信失敗を記録する。
func (c *Collector) RecordNetworkFailure(method string) {
	c.networkFailures.WithLabelValues(method).Inc()
}

// RecordForcedLogout は強制ログアウトを記録する。
func (c *Collector) RecordForcedLogout() {
	c.forcedLogouts.Inc()
}

// RecordPollSuccess はポーリング成功を記録する。
func (c *Collector) RecordPollSuccess(poller string) {
	c.pollSuccess.WithLabelValues(poller).Inc()
}

// RecordPollFailure はポーリング失敗を記録する。
func (c *Collector) RecordPollFailure(poller string) {
	c.pollFail.WithLabelValues(poller).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordRequest(string, int, time.Duration) {}
func (Nop) RecordNetworkFailure(string)              {}
func (Nop) RecordForcedLogout()                      {}
func (Nop) RecordPollSuccess(string)                 {}
func (Nop) RecordPollFailure(string)                 {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
