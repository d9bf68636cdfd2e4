package security

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrMediaTooLarge はメディアが許容サイズを超えた場合のエラー。
var ErrMediaTooLarge = errors.New("media exceeds maximum size")

// MediaDownloader は投稿画像やアバターをダウンロードする。
// サーバーオリジンと同じホストのURLは通常のクライアントで取得し、
// それ以外のホストはSSRF防止付きのクライアントで取得する。
type MediaDownloader struct {
	origin  *url.URL
	trusted *http.Client
	guarded *http.Client
	guard   SSRFGuardService
	maxSize int64
	logger  *slog.Logger
}

// NewMediaDownloader はMediaDownloaderの新しいインスタンスを生成する。
// trustedはサーバーオリジンへの取得に使うクライアント。
func NewMediaDownloader(
	origin string,
	trusted *http.Client,
	guard SSRFGuardService,
	timeout time.Duration,
	maxSize int64,
	logger *slog.Logger,
) (*MediaDownloader, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid server origin: %q", origin)
	}
	return &MediaDownloader{
		origin:  u,
		trusted: trusted,
		guarded: guard.NewSafeClient(timeout),
		guard:   guard,
		maxSize: maxSize,
		logger:  logger,
	}, nil
}

// Download はrawURLのメディアをwに書き込み、書き込んだバイト数を返す。
// rawURLは絶対URLであること。
func (d *MediaDownloader) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("invalid media URL: %w", err)
	}

	client := d.trusted
	if !d.sameOrigin(u) {
		if err := d.guard.ValidateURL(rawURL); err != nil {
			d.logger.Warn("media URL rejected",
				slog.String("url", rawURL),
				slog.String("error", err.Error()),
			)
			return 0, err
		}
		client = d.guarded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create media request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("failed to fetch media: status %d", resp.StatusCode)
	}
	if d.maxSize > 0 && resp.ContentLength > d.maxSize {
		return 0, ErrMediaTooLarge
	}

	var body io.Reader = resp.Body
	if d.maxSize > 0 {
		body = io.LimitReader(resp.Body, d.maxSize+1)
	}
	n, err := io.Copy(w, body)
	if err != nil {
		return n, fmt.Errorf("failed to read media: %w", err)
	}
	if d.maxSize > 0 && n > d.maxSize {
		return n, ErrMediaTooLarge
	}
	return n, nil
}

func (d *MediaDownloader) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, d.origin.Scheme) && strings.EqualFold(u.Host, d.origin.Host)
}
