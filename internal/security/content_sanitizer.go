// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はユーザーが入力したタスクのテキストからHTMLマークアップを除去する。
// bluemondayのStrictPolicyで全タグを取り除き、プレーンテキストとして保存する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はプレーンテキスト化のインターフェースを定義する。
// タスクのタイトル・説明の検証前に使用される。
type TextSanitizerService interface {
	// Sanitize は入力から全HTMLタグを除去したプレーンテキストを返す。
	// script、styleタグは中身ごと除去される。
	// エンティティはデコードして返すため、"&"や"<"はそのままの文字として残る。
	// 前後の空白は除去する。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// maxSanitizePasses はエンティティの多重エンコードを展開する上限回数。
const maxSanitizePasses = 8

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力から全HTMLタグを除去したプレーンテキストを返す。
// "&lt;b&gt;"のようにエンティティ化されたマークアップもデコード後に除去する。
// 出力を再度Sanitizeしても変化しない状態になるまで繰り返す。
func (s *textSanitizer) Sanitize(raw string) string {
	text := raw
	for i := 0; i < maxSanitizePasses; i++ {
		next := s.pass(text)
		if next == text {
			return text
		}
		text = next
	}
	// 上限まで展開しても収束しない入力はマークアップを含むものとして破棄する
	if s.pass(text) != text {
		return ""
	}
	return text
}

// pass はタグ除去とエンティティのデコードを1回行う。
// bluemondayは出力をHTMLエスケープするため、保存用にデコードする。
func (s *textSanitizer) pass(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}
