// Package gateway はリモートAPIへの認証付きHTTP呼び出しを一元化する。
// 認証ヘッダーの付与、エラーレスポンスの解釈、認証失敗時の強制ログアウトを担う。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/hitoshi/shequ/internal/metrics"
	"github.com/hitoshi/shequ/internal/model"
)

const (
	// maxResponseSize はレスポンスボディの最大読み取りサイズ。
	maxResponseSize = 8 << 20
	// requestIDHeader はリクエスト追跡用ヘッダー名。
	requestIDHeader = "X-Request-ID"
)

// TokenSource は認証トークンの読み取りと強制破棄のインターフェース。
// session.Managerが実装する。
type TokenSource interface {
	Token() string
	Clear(ctx context.Context) error
}

// ClientConfig はClientの設定を保持する。
type ClientConfig struct {
	// BaseURL はAPIの基底URL（例: "https://shequ.example.com/api/v1"）。
	BaseURL string
	// RateLimit は1秒あたりの最大リクエスト数。0以下の場合は制限しない。
	RateLimit float64
	// RateBurst はレート制限のバーストサイズ。
	RateBurst int
}

// Client はリモートAPIのHTTPゲートウェイ。
// すべての呼び出しで現在のトークンを読み取り、存在すればBearerトークンとして付与する。
type Client struct {
	httpClient *http.Client
	baseURL    string
	session    TokenSource
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	limiter    *rate.Limiter
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(
	httpClient *http.Client,
	session TokenSource,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	cfg ClientConfig,
) *Client {
	if collector == nil {
		collector = metrics.Nop{}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		session:    session,
		logger:     logger,
		metrics:    collector,
		limiter:    limiter,
	}
}

// Send はJSONリクエストを送信し、パース済みのレスポンスボディを返す。
// 2xxの場合はボディをそのまま返す（エンベロープの解釈は呼び出し元が行う）。
// 2xx以外の場合はボディのmessageまたはerrorをメッセージとするRequestErrorを返す。
// headerで指定したヘッダーは既定のヘッダーを上書きする。
func (c *Client) Send(ctx context.Context, endpoint, method string, body any, header http.Header) (gjson.Result, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return gjson.Result{}, c.fail(&model.RequestError{
				Endpoint: endpoint,
				Method:   method,
				Message:  "failed to encode request body",
				Err:      err,
			})
		}
		reader = bytes.NewReader(encoded)
	}

	req, hadToken, err := c.newRequest(ctx, method, endpoint, reader)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	return c.do(req, endpoint, hadToken)
}

// Get はGETリクエストを送信する。
func (c *Client) Get(ctx context.Context, endpoint string) (gjson.Result, error) {
	return c.Send(ctx, endpoint, http.MethodGet, nil, nil)
}

// Post はJSONボディ付きのPOSTリクエストを送信する。
func (c *Client) Post(ctx context.Context, endpoint string, body any) (gjson.Result, error) {
	return c.Send(ctx, endpoint, http.MethodPost, body, nil)
}

// Put はJSONボディ付きのPUTリクエストを送信する。
func (c *Client) Put(ctx context.Context, endpoint string, body any) (gjson.Result, error) {
	return c.Send(ctx, endpoint, http.MethodPut, body, nil)
}

// Delete はボディなしのDELETEリクエストを送信する。
func (c *Client) Delete(ctx context.Context, endpoint string) (gjson.Result, error) {
	return c.Send(ctx, endpoint, http.MethodDelete, nil, nil)
}

// resolve はエンドポイントから完全なURLを組み立てる。
// 絶対URLが渡された場合はそのまま使う。
func (c *Client) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

// newRequest は認証ヘッダーとリクエストIDを付与したリクエストを生成する。
// トークンを付与したかどうかを合わせて返す。
func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(endpoint), body)
	if err != nil {
		return nil, false, c.fail(&model.RequestError{
			Endpoint: endpoint,
			Method:   method,
			Message:  "failed to create request",
			Err:      err,
		})
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())

	token := c.session.Token()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, token != "", nil
}

// do はリクエストを実行し、レスポンスを解釈する。
func (c *Client) do(req *http.Request, endpoint string, hadToken bool) (gjson.Result, error) {
	ctx := req.Context()
	method := req.Method

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return gjson.Result{}, c.fail(&model.RequestError{
				Endpoint: endpoint,
				Method:   method,
				Message:  "network error",
				Err:      fmt.Errorf("%w: %w", model.ErrNetwork, err),
			})
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordNetworkFailure(method)
		return gjson.Result{}, c.fail(&model.RequestError{
			Endpoint: endpoint,
			Method:   method,
			Message:  "network error",
			Err:      fmt.Errorf("%w: %w", model.ErrNetwork, err),
		})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	c.metrics.RecordRequest(method, resp.StatusCode, time.Since(start))
	if err != nil {
		return gjson.Result{}, c.fail(&model.RequestError{
			Endpoint: endpoint,
			Method:   method,
			Status:   resp.StatusCode,
			Message:  "network error",
			Err:      fmt.Errorf("%w: %w", model.ErrNetwork, err),
		})
	}

	// ボディはステータスに関わらずJSONとして解釈する
	result, valid := parseBody(raw)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if !valid {
			return gjson.Result{}, c.fail(&model.RequestError{
				Endpoint: endpoint,
				Method:   method,
				Status:   resp.StatusCode,
				Message:  "invalid JSON response",
				Err:      model.ErrInvalidResponse,
			})
		}
		return result, nil
	}

	reqErr := &model.RequestError{
		Endpoint: endpoint,
		Method:   method,
		Status:   resp.StatusCode,
		Message:  errorMessage(result, valid),
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		reqErr.Err = model.ErrUnauthorized
		if hadToken {
			c.forceLogout(ctx, endpoint)
		}
	case !valid:
		reqErr.Err = model.ErrInvalidResponse
	}

	return gjson.Result{}, c.fail(reqErr)
}

// forceLogout は認証失敗を受けてセッションを破棄する。
func (c *Client) forceLogout(ctx context.Context, endpoint string) {
	c.metrics.RecordForcedLogout()
	c.logger.Warn("authentication rejected, clearing session",
		slog.String("endpoint", endpoint),
	)
	// リクエストのコンテキストがキャンセル済みでも破棄は完了させる
	if err := c.session.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error("failed to clear session after authentication failure",
			slog.String("error", err.Error()),
		)
	}
}

// fail はエラーをエンドポイント名付きでログに記録してから返す。
func (c *Client) fail(err *model.RequestError) error {
	attrs := []any{
		slog.String("endpoint", err.Endpoint),
		slog.String("method", err.Method),
		slog.Int("status", err.Status),
		slog.String("message", err.Message),
	}
	if err.Err != nil {
		attrs = append(attrs, slog.String("error", err.Err.Error()))
	}
	c.logger.Error("API request failed", attrs...)
	return err
}

// parseBody はボディをJSONとして解釈する。空ボディはnullとして扱う。
func parseBody(raw []byte) (gjson.Result, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return gjson.Parse("null"), true
	}
	if !gjson.ValidBytes(trimmed) {
		return gjson.Result{}, false
	}
	return gjson.ParseBytes(trimmed), true
}

// errorMessage はエラーレスポンスからメッセージを取り出す。
// message、errorの順に文字列フィールドを探し、なければ既定文言を返す。
func errorMessage(result gjson.Result, valid bool) string {
	if valid {
		for _, key := range []string{"message", "error"} {
			if v := result.Get(key); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	return model.DefaultFailureMessage
}
