// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/newsman/internal/model"
)

// ArticleReader は記事の読み取り専用インターフェース。
// 一覧、件数、レコメンド候補はすべて同じArticleFilterから条件を組み立てる。
type ArticleReader interface {
	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Article, error)

	// FindByIDs は指定IDの記事をまとめて取得する。存在しないIDは結果に含まれない。
	// 返却順は保証しない。
	FindByIDs(ctx context.Context, ids []string) ([]model.Article, error)

	// Find はpublished_at降順、id昇順で記事を取得する。
	Find(ctx context.Context, filter model.ArticleFilter, skip, limit int) ([]model.Article, error)

	// Count はFindと同じ条件に一致する記事の件数を返す。
	Count(ctx context.Context, filter model.ArticleFilter) (int, error)

	// ListCandidates はスコアリング用に条件に一致する全記事の最小情報を返す。
	ListCandidates(ctx context.Context, filter model.ArticleFilter) ([]model.ArticleCandidate, error)

	// TextSearch はタイトル、概要、本文に対する全文検索を行い、関連度降順で返す。
	TextSearch(ctx context.Context, query string, skip, limit int) ([]model.Article, error)

	// CountTextSearch はTextSearchと同じ条件に一致する記事の件数を返す。
	CountTextSearch(ctx context.Context, query string) (int, error)
}

// ArticleWriter は記事の書き込みインターフェース。取り込みワーカーと管理操作が使用する。
type ArticleWriter interface {
	// UpsertByURL はURLをキーに記事を作成または上書きする。
	// 記事IDと、新規作成であったかを返す。
	UpsertByURL(ctx context.Context, article *model.Article) (id string, inserted bool, err error)

	// DeleteByID は指定IDの記事を削除する。保存済み記事、既読履歴も同一トランザクションで削除する。
	// 記事が存在しなかった場合はfalseを返す。
	DeleteByID(ctx context.Context, id string) (bool, error)

	// DeleteOlderThan はcutoffより前に公開された記事を削除し、削除した記事IDを返す。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
}

// ArticleRepository は記事の読み書きをまとめたインターフェース。
type ArticleRepository interface {
	ArticleReader
	ArticleWriter
}

// ProfileRepository はユーザーの嗜好と既読履歴の永続化インターフェース。
type ProfileRepository interface {
	// FindProfile は指定ユーザーのプロファイルを取得する。見つからない場合はnilを返す。
	FindProfile(ctx context.Context, userID string) (*model.UserProfile, error)

	// AddReadArticle は既読履歴に記事を追加する。既に既読の場合は何もしない。
	AddReadArticle(ctx context.Context, userID, articleID string) error

	// UpdatePreferences は好みのカテゴリを置き換える。ユーザーが存在しない場合はfalseを返す。
	UpdatePreferences(ctx context.Context, userID string, categories []string) (bool, error)
}

// SavedArticleRepository は保存済み記事の永続化インターフェース。
type SavedArticleRepository interface {
	// ListByUser はユーザーの保存済み記事を保存日時の降順で返す。
	ListByUser(ctx context.Context, userID string) ([]model.SavedArticle, error)

	// Save は記事のスナップショットを保存する。既に保存済みの場合は既存のものを返す。
	Save(ctx context.Context, userID string, article *model.Article) (*model.SavedArticle, error)

	// DeleteByUserAndID はユーザーの保存済み記事を削除する。見つからない場合はfalseを返す。
	DeleteByUserAndID(ctx context.Context, userID, savedID string) (bool, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
