package model

import "fmt"

// ArticlePage は記事一覧の1ページ分の結果。キャッシュのペイロードとしても使用する。
type ArticlePage struct {
	Articles      []Article `json:"articles"`
	CurrentPage   int       `json:"current_page"`
	TotalPages    int       `json:"total_pages"`
	TotalArticles int       `json:"total_articles"`
}

// SearchResult は全文検索の1ページ分の結果。関連度順に並ぶ。
type SearchResult struct {
	Results      []Article `json:"results"`
	CurrentPage  int       `json:"current_page"`
	TotalPages   int       `json:"total_pages"`
	TotalResults int       `json:"total_results"`
}

// RecommendationResult はレコメンドの1ページ分の結果。
// TotalRecommendations はページ抽出前の候補全体の件数で、ページと同じ条件から算出される。
type RecommendationResult struct {
	Recommendations      []Article `json:"recommendations"`
	CurrentPage          int       `json:"current_page"`
	TotalPages           int       `json:"total_pages"`
	TotalRecommendations int       `json:"total_recommendations"`
}

// ValidatePaging はページ番号と取得件数を検証する。
// maxLimitが0以下の場合は上限を検証しない。
func ValidatePaging(page, limit, maxLimit int) error {
	if page < 1 {
		return NewInvalidArgumentError(fmt.Sprintf("page は1以上を指定してください: %d", page))
	}
	if limit < 1 {
		return NewInvalidArgumentError(fmt.Sprintf("limit は1以上を指定してください: %d", limit))
	}
	if maxLimit > 0 && limit > maxLimit {
		return NewInvalidArgumentError(fmt.Sprintf("limit は%d以下を指定してください: %d", maxLimit, limit))
	}
	return nil
}

// Offset はページ番号と取得件数から読み飛ばす件数を返す。
func Offset(page, limit int) int {
	return (page - 1) * limit
}

// TotalPages は総件数をlimitで割った切り上げ値を返す。
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
