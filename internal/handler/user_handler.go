package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsman/internal/middleware"
	"github.com/hitoshi/newsman/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetPreferences(ctx context.Context, userID string) ([]string, error)
	// UpdatePreferences は好みのカテゴリを置き換え、おすすめのキャッシュを無効化する。
	UpdatePreferences(ctx context.Context, userID string, categories []string) ([]string, error)
	ListSaved(ctx context.Context, userID string) ([]model.SavedArticle, error)
	SaveArticle(ctx context.Context, userID, articleID string) (*model.SavedArticle, error)
	UnsaveArticle(ctx context.Context, userID, savedID string) error
}

// UserHandler はユーザー設定のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// preferencesBody は好みのカテゴリのリクエスト/レスポンスボディ。
type preferencesBody struct {
	Categories []string `json:"categories"`
}

// saveArticleRequest は記事保存リクエストのボディ。
type saveArticleRequest struct {
	ArticleID string `json:"article_id"`
}

// savedArticlesResponse は保存済み記事一覧のレスポンス。
type savedArticlesResponse struct {
	SavedArticles []model.SavedArticle `json:"saved_articles"`
}

// GetPreferences は好みのカテゴリを返す。
// GET /api/users/preferences
func (h *UserHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	categories, err := h.service.GetPreferences(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, preferencesBody{Categories: nonNil(categories)})
}

// UpdatePreferences は好みのカテゴリを置き換える。
// PUT /api/users/preferences
func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req preferencesBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, model.NewInvalidArgumentError("リクエストボディが不正です"))
		return
	}

	categories, err := h.service.UpdatePreferences(r.Context(), userID, req.Categories)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, preferencesBody{Categories: nonNil(categories)})
}

// ListSaved は保存済み記事を新しい順で返す。
// GET /api/users/saved-articles
func (h *UserHandler) ListSaved(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	saved, err := h.service.ListSaved(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, savedArticlesResponse{SavedArticles: nonNil(saved)})
}

// SaveArticle は記事を保存する。保存済みの場合も既存のスナップショットを返す。
// POST /api/users/saved-articles
func (h *UserHandler) SaveArticle(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req saveArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, model.NewInvalidArgumentError("リクエストボディが不正です"))
		return
	}
	if req.ArticleID == "" {
		handleServiceError(w, model.NewInvalidArgumentError("article_id は必須です"))
		return
	}

	saved, err := h.service.SaveArticle(r.Context(), userID, req.ArticleID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, saved)
}

// UnsaveArticle は保存済み記事を削除する。
// DELETE /api/users/saved-articles/{id}
func (h *UserHandler) UnsaveArticle(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	if err := h.service.UnsaveArticle(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nonNil はnilスライスを空スライスにしてJSONでnullにならないようにする。
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
