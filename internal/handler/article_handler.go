package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsman/internal/middleware"
	"github.com/hitoshi/newsman/internal/model"
)

// ArticleServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
// cached.Serviceがキャッシュを挟んで実装する。
type ArticleServiceInterface interface {
	ListArticles(ctx context.Context, page, limit int, category string) (*model.ArticlePage, error)
	SearchArticles(ctx context.Context, query string, page, limit int) (*model.SearchResult, error)
	GetArticle(ctx context.Context, id string) (*model.Article, error)
	Recommend(ctx context.Context, userID string, page, limit int) (*model.RecommendationResult, error)
	MarkRead(ctx context.Context, userID, articleID string) error
	DeleteArticle(ctx context.Context, id string) error
}

// ArticleHandler は記事のHTTPハンドラー。
type ArticleHandler struct {
	service ArticleServiceInterface
	paging  PagingConfig
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(service ArticleServiceInterface, paging PagingConfig) *ArticleHandler {
	return &ArticleHandler{
		service: service,
		paging:  paging,
	}
}

// ListArticles は記事一覧を返す。
// GET /api/articles?page=&limit=&category=
func (h *ArticleHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	page, limit, err := h.paging.parsePaging(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.ListArticles(r.Context(), page, limit, r.URL.Query().Get("category"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// SearchArticles は記事を全文検索する。
// GET /api/articles/search?query=&page=&limit=
func (h *ArticleHandler) SearchArticles(w http.ResponseWriter, r *http.Request) {
	page, limit, err := h.paging.parsePaging(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.SearchArticles(r.Context(), r.URL.Query().Get("query"), page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// GetArticle は記事詳細を返す。
// GET /api/articles/{id}
func (h *ArticleHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetArticle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, a)
}

// Recommend はユーザー向けのおすすめ記事を返す。
// GET /api/articles/recommended?page=&limit=
func (h *ArticleHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}
	page, limit, err := h.paging.parsePaging(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.Recommend(r.Context(), userID, page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// MarkRead は記事を既読にする。既読済みでも204を返す。
// POST /api/articles/{id}/read
func (h *ArticleHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkRead(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteArticle は記事を削除する。保存済み記事の参照も削除される。
// DELETE /api/articles/{id}
func (h *ArticleHandler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	if _, ok := userIDOrUnauthorized(w, r); !ok {
		return
	}

	if err := h.service.DeleteArticle(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
