// Package model はドメインモデルを定義する。
package model

import (
	"slices"
	"time"
)

// Article はニュースソースから取り込んだ記事を表す。
// URLで一意に識別され、取り込み後は再取り込み（URLによるUPSERT）以外で変更されない。
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"image_url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Category    string    `json:"category"`
	Author      string    `json:"author"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ArticleCandidate はレコメンドのスコアリングに必要な最小限の記事情報。
type ArticleCandidate struct {
	ID          string
	Title       string
	Category    string
	PublishedAt time.Time
}

// ArticleFilter は記事の一覧取得と件数取得で共有する絞り込み条件。
// 一覧と件数は必ず同じArticleFilterから条件を組み立てる。
type ArticleFilter struct {
	// Category が空でない場合は完全一致で絞り込む。
	Category string
	// ExcludeIDs に含まれる記事を除外する。
	ExcludeIDs []string
}

// 記事カテゴリの語彙。
const (
	CategoryTechnology    = "technology"
	CategoryBusiness      = "business"
	CategorySports        = "sports"
	CategoryHealth        = "health"
	CategoryScience       = "science"
	CategoryEntertainment = "entertainment"
	CategoryGeneral       = "general"
)

// Categories は取り込み時の分類で使用するカテゴリの一覧。
var Categories = []string{
	CategoryTechnology,
	CategoryBusiness,
	CategorySports,
	CategoryHealth,
	CategoryScience,
	CategoryEntertainment,
	CategoryGeneral,
}

// IsValidCategory はカテゴリが語彙に含まれるかを判定する。
func IsValidCategory(category string) bool {
	return slices.Contains(Categories, category)
}

// IncomingArticle は外部ソースから取得した未保存の記事データを表す。
// 取り込みワーカーがソースをパースした後、Ingesterに渡される。
type IncomingArticle struct {
	Title       string
	Description string // 未サニタイズ
	Content     string // 未サニタイズ
	URL         string
	ImageURL    string
	Source      string
	Author      string
	PublishedAt time.Time
}
