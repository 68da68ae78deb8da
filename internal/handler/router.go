// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/newsman/internal/metrics"
	"github.com/hitoshi/newsman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	HTTPRecorder      metrics.HTTPRecorder
	CORSAllowedOrigin string
	IdentityHeader    string
	AdminUserIDs      []string
	RateLimiter       *middleware.RateLimiter

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 記事
	ArticleService ArticleServiceInterface
	Paging         PagingConfig

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → SecurityHeaders → CORS → [Identity] → RateLimit → [Admin]
//
// 識別が必要なルートではIdentityの後にRateLimitを置き、ユーザー単位で制限する。
// /health と /metrics はレート制限の対象外。
// 記事の削除はAdminUserIDsに含まれる利用者のみ許可する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	paging := deps.Paging
	if paging.DefaultLimit == 0 {
		paging = DefaultPagingConfig()
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.HTTPRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin, deps.IdentityHeader))

	articleHandler := NewArticleHandler(deps.ArticleService, paging)
	userHandler := NewUserHandler(deps.UserService)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	rateLimit := func(next http.Handler) http.Handler { return next }
	if deps.RateLimiter != nil {
		rateLimit = deps.RateLimiter.Middleware()
	}
	identity := middleware.NewIdentityMiddleware(deps.IdentityHeader)
	admin := middleware.NewAdminMiddleware(deps.AdminUserIDs)

	// --- 識別不要のルート ---
	r.Group(func(r chi.Router) {
		r.Use(rateLimit)

		r.Get("/api/articles", articleHandler.ListArticles)
		r.Get("/api/articles/search", articleHandler.SearchArticles)
		r.Get("/api/articles/{id}", articleHandler.GetArticle)
	})

	// --- 識別が必要なルート ---
	// ミドルウェアスタック: Identity → RateLimit
	r.Group(func(r chi.Router) {
		r.Use(identity)
		r.Use(rateLimit)

		// 記事
		r.Get("/api/articles/recommended", articleHandler.Recommend)
		r.Post("/api/articles/{id}/read", articleHandler.MarkRead)
		r.With(admin).Delete("/api/articles/{id}", articleHandler.DeleteArticle)

		// ユーザー設定
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/preferences", userHandler.GetPreferences)
			r.Put("/preferences", userHandler.UpdatePreferences)
			r.Get("/saved-articles", userHandler.ListSaved)
			r.Post("/saved-articles", userHandler.SaveArticle)
			r.Delete("/saved-articles/{id}", userHandler.UnsaveArticle)
		})
	})

	return r
}
