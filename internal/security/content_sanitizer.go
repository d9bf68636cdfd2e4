// Package security はサーバーから受け取ったコンテンツを端末に出す前の防御を提供する。
//
// TextSanitizer は投稿本文・コメント・メッセージに含まれるHTMLタグと
// 端末制御文字を取り除き、プレーンテキストとして表示できる形にする。
// bluemondayのStrictPolicyを使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー投稿テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize はテキストからHTMLタグと端末制御文字を除去する。
	// 改行とタブは保持する。HTMLエンティティは文字に戻す。
	// 空文字列の入力には空文字列を返す。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
// 全タグを除去するStrictPolicyを使う。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストをサニタイズする。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	// StrictPolicyはエンティティをエスケープして返すため、表示前に戻す
	text := html.UnescapeString(s.policy.Sanitize(raw))
	return stripControl(text)
}

// stripControl はESCなどの制御文字を除去する。改行とタブは残す。
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return -1
		case r < 0x20 || (r >= 0x7f && r < 0xa0):
			return -1
		default:
			return r
		}
	}, s)
}
