// Package mapper はサーバーの揺れのあるレスポンスを正規化済みエンティティへ変換する。
// すべての関数は副作用を持たず、不正な入力に対してもパニックせずゼロ値を返す。
package mapper

import (
	"regexp"
	"strings"
)

// schemePattern はURLスキームの有無を判定する。
var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

// NormalizeURL はメディア参照をサーバーオリジン基準の絶対URLに解決する。
// 空文字列は空文字列のまま返し、スキーム付きのURLは変更しない。
// 相対パスは先頭のスラッシュを除去してからオリジンを1回だけ付与する。
func NormalizeURL(origin, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if schemePattern.MatchString(raw) {
		return raw
	}
	return strings.TrimRight(origin, "/") + "/" + strings.TrimLeft(raw, "/")
}
