package handler

import (
	"context"

	"github.com/hitoshi/newsman/internal/model"
	"github.com/hitoshi/newsman/internal/user"
)

// PreferenceUpdater は好みのカテゴリ更新とキャッシュ無効化をまとめて行うインターフェース。
// cached.Serviceが実装する。
type PreferenceUpdater interface {
	UpdatePreferences(ctx context.Context, userID string, categories []string) ([]string, error)
}

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
// 好みの更新だけはおすすめのキャッシュを無効化するためPreferenceUpdaterを経由する。
type UserServiceAdapter struct {
	svc   *user.Service
	prefs PreferenceUpdater
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
// prefsがnilの場合はuser.Serviceで直接更新する。
func NewUserServiceAdapter(svc *user.Service, prefs PreferenceUpdater) *UserServiceAdapter {
	if prefs == nil {
		prefs = svc
	}
	return &UserServiceAdapter{svc: svc, prefs: prefs}
}

// GetPreferences は好みのカテゴリを返す。
func (a *UserServiceAdapter) GetPreferences(ctx context.Context, userID string) ([]string, error) {
	return a.svc.GetPreferences(ctx, userID)
}

// UpdatePreferences は好みのカテゴリを置き換える。
func (a *UserServiceAdapter) UpdatePreferences(ctx context.Context, userID string, categories []string) ([]string, error) {
	return a.prefs.UpdatePreferences(ctx, userID, categories)
}

// ListSaved は保存済み記事を返す。
func (a *UserServiceAdapter) ListSaved(ctx context.Context, userID string) ([]model.SavedArticle, error) {
	return a.svc.ListSaved(ctx, userID)
}

// SaveArticle は記事を保存する。
func (a *UserServiceAdapter) SaveArticle(ctx context.Context, userID, articleID string) (*model.SavedArticle, error) {
	return a.svc.SaveArticle(ctx, userID, articleID)
}

// UnsaveArticle は保存済み記事を削除する。
func (a *UserServiceAdapter) UnsaveArticle(ctx context.Context, userID, savedID string) error {
	return a.svc.UnsaveArticle(ctx, userID, savedID)
}

// --- compile-time interface checks ---

var _ UserServiceInterface = (*UserServiceAdapter)(nil)
var _ PreferenceUpdater = (*user.Service)(nil)
