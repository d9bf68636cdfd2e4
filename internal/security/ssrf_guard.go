package security

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrBlockedMediaURL は投稿やプロフィールに含まれる画像URLが取得対象として許可されない場合のエラー。
var ErrBlockedMediaURL = errors.New("media URL is not allowed")

// SSRFGuardService は外部ホストの画像を取得するときの宛先検証を定義する。
// サーバーオリジンの画像はこの検証を通らない。
type SSRFGuardService interface {
	// NewSafeClient は接続時に宛先IPを検証するHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL は接続前にURLだけで判定できる宛先を拒否する。
	ValidateURL(rawURL string) error
}

// mediaSchemes は画像URLとして受け付けるスキーム。
var mediaSchemes = []string{"http", "https"}

// privateRanges は画像の取得先として拒否するアドレス範囲。
// クラウドのメタデータIP(169.254.169.254)はリンクローカルに含まれる。
var privateRanges = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"0.0.0.0/8",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

// internalHostnames は名前解決前に拒否するホスト名。
var internalHostnames = []string{"localhost", "metadata.google.internal"}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR %q: %v", cidr, err))
		}
		nets = append(nets, n)
	}
	return nets
}

type ssrfGuard struct{}

// NewSSRFGuard はSSRFGuardServiceの実装を生成する。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{}
}

// NewSafeClient はsafeurlで宛先IPを検証するクライアントを返す。
// 検証はDNS解決後に行われるため、公開名がプライベートIPを指す場合も拒否される。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(mediaSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL は画像URLを検証する。拒否した場合はErrBlockedMediaURLをラップして返す。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBlockedMediaURL, err)
	}

	if !slices.Contains(mediaSchemes, strings.ToLower(u.Scheme)) {
		return fmt.Errorf("%w: scheme %q", ErrBlockedMediaURL, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case host == "":
		return fmt.Errorf("%w: no host in %q", ErrBlockedMediaURL, rawURL)
	case slices.Contains(internalHostnames, host):
		return fmt.Errorf("%w: host %s", ErrBlockedMediaURL, host)
	}

	if ip := net.ParseIP(host); ip != nil && inPrivateRange(ip) {
		return fmt.Errorf("%w: address %s", ErrBlockedMediaURL, ip)
	}
	return nil
}

func inPrivateRange(ip net.IP) bool {
	for _, n := range privateRanges {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
