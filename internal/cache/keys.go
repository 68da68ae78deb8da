package cache

import (
	"net/url"
	"strconv"
	"strings"
)

// キーファミリーのプレフィックス。キーは "<操作>:<引数1>:<引数2>..." の形式。
const (
	PrefixArticles        = "articles:"
	PrefixSearch          = "search:"
	PrefixArticle         = "article:"
	PrefixRecommendations = "recommended:"
)

// AllSentinel は省略された任意引数をキー上で表す値。
const AllSentinel = "all"

// ListingFamilies は記事の追加や削除で内容が変わりうるキーファミリー。
var ListingFamilies = []string{PrefixArticles, PrefixSearch, PrefixRecommendations}

// escapeSegment は区切り文字 ':' やglob文字がキーに現れないよう引数をエスケープする。
// 異なる引数の組が同じキーにならないことを保証する。
func escapeSegment(s string) string {
	return url.QueryEscape(s)
}

func join(prefix string, segments ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for i, s := range segments {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(s)
	}
	return b.String()
}

// optionalSegment は任意引数をキーの要素に変換する。空の場合はAllSentinelを使う。
// 値そのものが "all" の場合は先頭文字をパーセントエンコードする。
// QueryEscapeは英字をエンコードしないため、"%61ll" は他のどの値とも一致しない。
func optionalSegment(s string) string {
	if s == "" {
		return AllSentinel
	}
	e := escapeSegment(s)
	if e == AllSentinel {
		return "%61ll"
	}
	return e
}

// ArticlesKey は記事一覧のキーを返す。categoryが空の場合はAllSentinelを使う。
func ArticlesKey(page, limit int, category string) string {
	return join(PrefixArticles, strconv.Itoa(page), strconv.Itoa(limit), optionalSegment(category))
}

// SearchKey は全文検索のキーを返す。queryは正規化済み（前後の空白を除去済み）であること。
func SearchKey(query string, page, limit int) string {
	return join(PrefixSearch, escapeSegment(query), strconv.Itoa(page), strconv.Itoa(limit))
}

// ArticleKey は記事単体のキーを返す。
func ArticleKey(id string) string {
	return join(PrefixArticle, escapeSegment(id))
}

// RecommendationsKey はユーザーごとのレコメンドのキーを返す。
func RecommendationsKey(userID string, page, limit int) string {
	return join(RecommendationsPrefix(userID), strconv.Itoa(page), strconv.Itoa(limit))
}

// RecommendationsPrefix はユーザーのレコメンドの全ページに共通するプレフィックスを返す。
func RecommendationsPrefix(userID string) string {
	return PrefixRecommendations + escapeSegment(userID) + ":"
}
