package model

import "time"

// UserProfile はレコメンドに必要なユーザー情報を表す。
// 順序は意味を持たず、どちらも集合として扱う。
type UserProfile struct {
	ID                  string
	PreferredCategories []string
	ReadArticleIDs      []string
}

// SavedArticle はユーザーが保存した記事のスナップショット。
type SavedArticle struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ArticleID   string    `json:"article_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Category    string    `json:"category"`
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`
}
