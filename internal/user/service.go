// Package user はユーザーの好みのカテゴリと保存済み記事を管理する。
package user

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hitoshi/newsman/internal/model"
	"github.com/hitoshi/newsman/internal/repository"
)

// ArticleFinder は保存対象の記事を取得するインターフェース。
type ArticleFinder interface {
	FindByID(ctx context.Context, id string) (*model.Article, error)
}

// Service はユーザー設定のサービス層。
type Service struct {
	profiles repository.ProfileRepository
	saved    repository.SavedArticleRepository
	articles ArticleFinder
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	profiles repository.ProfileRepository,
	saved repository.SavedArticleRepository,
	articles ArticleFinder,
) *Service {
	return &Service{
		profiles: profiles,
		saved:    saved,
		articles: articles,
	}
}

// GetPreferences はユーザーの好みのカテゴリを返す。
func (s *Service) GetPreferences(ctx context.Context, userID string) ([]string, error) {
	if err := validateID("userID", userID); err != nil {
		return nil, err
	}
	profile, err := s.profiles.FindProfile(ctx, userID)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	if profile == nil {
		return nil, model.NewUserNotFoundError(userID)
	}
	return profile.PreferredCategories, nil
}

// UpdatePreferences は好みのカテゴリを置き換える。
// 重複は取り除き、語彙に含まれないカテゴリがあればエラーにする。
func (s *Service) UpdatePreferences(ctx context.Context, userID string, categories []string) ([]string, error) {
	if err := validateID("userID", userID); err != nil {
		return nil, err
	}

	normalized := make([]string, 0, len(categories))
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		if !model.IsValidCategory(c) {
			return nil, model.NewInvalidCategoryError(c)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		normalized = append(normalized, c)
	}

	updated, err := s.profiles.UpdatePreferences(ctx, userID, normalized)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	if !updated {
		return nil, model.NewUserNotFoundError(userID)
	}

	slog.Info("好みのカテゴリを更新しました",
		slog.String("user_id", userID),
		slog.Any("categories", normalized),
	)
	return normalized, nil
}

// ListSaved はユーザーの保存済み記事を返す。
func (s *Service) ListSaved(ctx context.Context, userID string) ([]model.SavedArticle, error) {
	if err := validateID("userID", userID); err != nil {
		return nil, err
	}
	saved, err := s.saved.ListByUser(ctx, userID)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	return saved, nil
}

// SaveArticle は記事を保存済みに追加する。既に保存済みの場合は既存のものを返す。
func (s *Service) SaveArticle(ctx context.Context, userID, articleID string) (*model.SavedArticle, error) {
	if err := validateID("userID", userID); err != nil {
		return nil, err
	}
	if err := validateID("articleID", articleID); err != nil {
		return nil, err
	}

	profile, err := s.profiles.FindProfile(ctx, userID)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	if profile == nil {
		return nil, model.NewUserNotFoundError(userID)
	}

	a, err := s.articles.FindByID(ctx, articleID)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	if a == nil {
		return nil, model.NewArticleNotFoundError(articleID)
	}

	saved, err := s.saved.Save(ctx, userID, a)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	return saved, nil
}

// UnsaveArticle は保存済み記事を削除する。
func (s *Service) UnsaveArticle(ctx context.Context, userID, savedID string) error {
	if err := validateID("userID", userID); err != nil {
		return err
	}
	if err := validateID("id", savedID); err != nil {
		return err
	}
	deleted, err := s.saved.DeleteByUserAndID(ctx, userID, savedID)
	if err != nil {
		return model.NewStoreUnavailableError(err)
	}
	if !deleted {
		return model.NewSavedArticleNotFoundError(savedID)
	}
	return nil
}

func validateID(name, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewInvalidArgumentError(name + " はUUID形式で指定してください")
	}
	return nil
}
