// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はルーム名・説明・モデレーション理由などのユーザー入力から
// マークアップを除去し、クライアント表示時のXSSを防ぐ。
// bluemondayの StrictPolicy（全タグ不許可）を使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト入力のサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize は全てのHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// script, styleなどの要素は内容ごと除去される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去したプレーンテキストを返す。
// StrictPolicy がエスケープした文字実体（&amp; など）は元の文字に戻す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// NopSanitizer は入力の前後空白のみを取り除く TextSanitizer。テスト用。
type NopSanitizer struct{}

// Sanitize は前後の空白を除いた入力を返す。
func (NopSanitizer) Sanitize(raw string) string { return strings.TrimSpace(raw) }
