// Package article は記事の取得、検索、既読管理を提供する。
// データストアのみを参照し、キャッシュはcachedパッケージがこの上に重ねる。
package article

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hitoshi/newsman/internal/model"
	"github.com/hitoshi/newsman/internal/repository"
)

// Service は記事のサービス層。
type Service struct {
	articles repository.ArticleRepository
	profiles repository.ProfileRepository
	maxLimit int
}

// NewService はServiceの新しいインスタンスを生成する。
// maxLimitは1ページの最大件数で、0以下の場合は上限を設けない。
func NewService(articles repository.ArticleRepository, profiles repository.ProfileRepository, maxLimit int) *Service {
	return &Service{
		articles: articles,
		profiles: profiles,
		maxLimit: maxLimit,
	}
}

// NormalizeQuery は検索クエリの前後の空白を除去する。
// キャッシュキーと検索は同じ正規化済みクエリを使う。
func NormalizeQuery(query string) string {
	return strings.TrimSpace(query)
}

// ListArticles は記事一覧を公開日時の新しい順で返す。categoryが空の場合は全カテゴリ。
func (s *Service) ListArticles(ctx context.Context, page, limit int, category string) (*model.ArticlePage, error) {
	if err := model.ValidatePaging(page, limit, s.maxLimit); err != nil {
		return nil, err
	}
	if category != "" && !model.IsValidCategory(category) {
		return nil, model.NewInvalidCategoryError(category)
	}

	filter := model.ArticleFilter{Category: category}
	articles, err := s.articles.Find(ctx, filter, model.Offset(page, limit), limit)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	total, err := s.articles.Count(ctx, filter)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}

	return &model.ArticlePage{
		Articles:      articles,
		CurrentPage:   page,
		TotalPages:    model.TotalPages(total, limit),
		TotalArticles: total,
	}, nil
}

// SearchArticles はタイトル、概要、本文を全文検索し、関連度順で返す。
func (s *Service) SearchArticles(ctx context.Context, query string, page, limit int) (*model.SearchResult, error) {
	query = NormalizeQuery(query)
	if query == "" {
		return nil, model.NewInvalidArgumentError("query は必須です")
	}
	if err := model.ValidatePaging(page, limit, s.maxLimit); err != nil {
		return nil, err
	}

	results, err := s.articles.TextSearch(ctx, query, model.Offset(page, limit), limit)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	total, err := s.articles.CountTextSearch(ctx, query)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}

	return &model.SearchResult{
		Results:      results,
		CurrentPage:  page,
		TotalPages:   model.TotalPages(total, limit),
		TotalResults: total,
	}, nil
}

// GetArticle は指定IDの記事を返す。
func (s *Service) GetArticle(ctx context.Context, id string) (*model.Article, error) {
	if err := validateID("id", id); err != nil {
		return nil, err
	}
	a, err := s.articles.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	if a == nil {
		return nil, model.NewArticleNotFoundError(id)
	}
	return a, nil
}

// MarkRead は記事をユーザーの既読履歴に追加する。既に既読の場合も成功する。
func (s *Service) MarkRead(ctx context.Context, userID, articleID string) error {
	if err := validateID("userID", userID); err != nil {
		return err
	}
	if err := validateID("articleID", articleID); err != nil {
		return err
	}

	profile, err := s.profiles.FindProfile(ctx, userID)
	if err != nil {
		return model.NewStoreUnavailableError(err)
	}
	if profile == nil {
		return model.NewUserNotFoundError(userID)
	}

	a, err := s.articles.FindByID(ctx, articleID)
	if err != nil {
		return model.NewStoreUnavailableError(err)
	}
	if a == nil {
		return model.NewArticleNotFoundError(articleID)
	}

	if err := s.profiles.AddReadArticle(ctx, userID, articleID); err != nil {
		return model.NewStoreUnavailableError(err)
	}
	return nil
}

// DeleteArticle は記事を削除する。保存済み記事と既読履歴も合わせて削除される。
func (s *Service) DeleteArticle(ctx context.Context, id string) error {
	if err := validateID("id", id); err != nil {
		return err
	}
	deleted, err := s.articles.DeleteByID(ctx, id)
	if err != nil {
		return model.NewStoreUnavailableError(err)
	}
	if !deleted {
		return model.NewArticleNotFoundError(id)
	}

	slog.Info("記事を削除しました", slog.String("article_id", id))
	return nil
}

func validateID(name, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewInvalidArgumentError(name + " はUUID形式で指定してください")
	}
	return nil
}
