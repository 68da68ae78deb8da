// Package security は取り込み処理のセキュリティ機能を提供する。
//
// Sanitizer は外部ソースから取得した記事のテキストとHTMLを保存前に無害化する。
// bluemondayの許可リストベースのポリシーで、安全なタグと属性のみを通過させる。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer は記事フィールドのサニタイズ機能を定義する。
type ContentSanitizer interface {
	// SanitizeText はタグを全て除去したプレーンテキストを返す。タイトルと概要に使用する。
	SanitizeText(raw string) string
	// SanitizeHTML は許可タグのみを残したHTMLを返す。本文に使用する。
	SanitizeHTML(raw string) string
}

// Sanitizer はContentSanitizerの実装。ポリシーは生成後に変更しないため並行に使用できる。
type Sanitizer struct {
	text *bluemonday.Policy
	html *bluemonday.Policy
}

var _ ContentSanitizer = (*Sanitizer)(nil)

// NewSanitizer はSanitizerを生成する。
// 本文のポリシー:
//   - 許可タグ: p, br, a, ul, ol, li, blockquote, pre, code, strong, em, img
//   - imgのsrc属性: httpsスキームのみ許可
//   - aタグ: target="_blank" と rel="noopener noreferrer" を自動付与
func NewSanitizer() *Sanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(*url.URL) bool {
		return true
	})

	return &Sanitizer{
		text: bluemonday.StrictPolicy(),
		html: p,
	}
}

// SanitizeText はタグを除去し、エンティティを復元して空白を詰めたテキストを返す。
// 保存値はJSONとして返却されるため、HTMLエスケープは表示側に任せる。
func (s *Sanitizer) SanitizeText(raw string) string {
	stripped := s.text.Sanitize(raw)
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}

// SanitizeHTML は本文のHTMLをサニタイズする。
func (s *Sanitizer) SanitizeHTML(raw string) string {
	return strings.TrimSpace(s.html.Sanitize(raw))
}
