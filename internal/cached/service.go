// Package cached は記事サービスとレコメンドエンジンの前段に読み取りキャッシュを重ねる。
//
// 読み取りはキャッシュを先に参照し、ミスの場合のみ下位のサービスを呼び出して結果を保存する。
// 書き込みは下位のサービスが成功した後に関連するキーを無効化する。
// キャッシュの失敗はリクエストを失敗させず、ミスとして扱う。
package cached

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/newsman/internal/article"
	"github.com/hitoshi/newsman/internal/cache"
	"github.com/hitoshi/newsman/internal/metrics"
	"github.com/hitoshi/newsman/internal/model"
)

// ArticleService はキャッシュの下位となる記事サービス。
type ArticleService interface {
	ListArticles(ctx context.Context, page, limit int, category string) (*model.ArticlePage, error)
	SearchArticles(ctx context.Context, query string, page, limit int) (*model.SearchResult, error)
	GetArticle(ctx context.Context, id string) (*model.Article, error)
	MarkRead(ctx context.Context, userID, articleID string) error
	DeleteArticle(ctx context.Context, id string) error
}

// Recommender はキャッシュの下位となるレコメンドエンジン。
type Recommender interface {
	Recommend(ctx context.Context, userID string, page, limit int) (*model.RecommendationResult, error)
}

// PreferenceUpdater は好みのカテゴリを更新する下位のサービス。
type PreferenceUpdater interface {
	UpdatePreferences(ctx context.Context, userID string, categories []string) ([]string, error)
}

// メトリクスとログで使用する操作名
const (
	opRecommend      = "recommend"
	opListArticles   = "list_articles"
	opSearchArticles = "search_articles"
	opGetArticle     = "get_article"
)

// 無効化のスコープ名
const (
	scopeUserRecommendations = "user_recommendations"
	scopeArticle             = "article"
	scopeArticles            = "articles"
)

// TTLs は操作ごとのキャッシュ有効期限。
type TTLs struct {
	Articles        time.Duration
	Search          time.Duration
	Article         time.Duration
	Recommendations time.Duration
}

// DefaultTTLs は既定の有効期限を返す。
func DefaultTTLs() TTLs {
	return TTLs{
		Articles:        5 * time.Minute,
		Search:          15 * time.Minute,
		Article:         60 * time.Minute,
		Recommendations: 30 * time.Minute,
	}
}

// Options はServiceの設定。
type Options struct {
	TTLs TTLs
	// Timeout は読み取りと保存1回あたりのタイムアウト。超過はミスとして扱う。
	Timeout time.Duration
	// InvalidateTimeout は書き込み後の無効化全体のタイムアウト。
	InvalidateTimeout time.Duration
}

// Service はキャッシュを前段に持つ記事サービス。並行に呼び出してよい。
type Service struct {
	articles    ArticleService
	recommender Recommender
	prefs       PreferenceUpdater
	cache       cache.Cache
	opts        Options
	metrics     metrics.CacheRecorder
}

// NewService はServiceを生成する。prefsがnilの場合はUpdatePreferencesを提供しない。
func NewService(
	articles ArticleService,
	recommender Recommender,
	prefs PreferenceUpdater,
	c cache.Cache,
	opts Options,
	rec metrics.CacheRecorder,
) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 150 * time.Millisecond
	}
	if opts.InvalidateTimeout <= 0 {
		opts.InvalidateTimeout = 2 * time.Second
	}
	return &Service{
		articles:    articles,
		recommender: recommender,
		prefs:       prefs,
		cache:       c,
		opts:        opts,
		metrics:     rec,
	}
}

// Recommend はユーザーのレコメンドを返す。
func (s *Service) Recommend(ctx context.Context, userID string, page, limit int) (*model.RecommendationResult, error) {
	key := cache.RecommendationsKey(userID, page, limit)
	return readThrough(ctx, s, opRecommend, key, s.opts.TTLs.Recommendations, func(ctx context.Context) (*model.RecommendationResult, error) {
		return s.recommender.Recommend(ctx, userID, page, limit)
	})
}

// ListArticles は記事一覧を返す。
func (s *Service) ListArticles(ctx context.Context, page, limit int, category string) (*model.ArticlePage, error) {
	key := cache.ArticlesKey(page, limit, category)
	return readThrough(ctx, s, opListArticles, key, s.opts.TTLs.Articles, func(ctx context.Context) (*model.ArticlePage, error) {
		return s.articles.ListArticles(ctx, page, limit, category)
	})
}

// SearchArticles は全文検索の結果を返す。キーは正規化済みのクエリから導出する。
func (s *Service) SearchArticles(ctx context.Context, query string, page, limit int) (*model.SearchResult, error) {
	query = article.NormalizeQuery(query)
	key := cache.SearchKey(query, page, limit)
	return readThrough(ctx, s, opSearchArticles, key, s.opts.TTLs.Search, func(ctx context.Context) (*model.SearchResult, error) {
		return s.articles.SearchArticles(ctx, query, page, limit)
	})
}

// GetArticle は記事単体を返す。
func (s *Service) GetArticle(ctx context.Context, id string) (*model.Article, error) {
	key := cache.ArticleKey(id)
	return readThrough(ctx, s, opGetArticle, key, s.opts.TTLs.Article, func(ctx context.Context) (*model.Article, error) {
		return s.articles.GetArticle(ctx, id)
	})
}

// MarkRead は記事を既読にし、ユーザーのレコメンドを無効化する。
func (s *Service) MarkRead(ctx context.Context, userID, articleID string) error {
	if err := s.articles.MarkRead(ctx, userID, articleID); err != nil {
		return err
	}
	s.invalidate(ctx, scopeUserRecommendations, nil, []string{cache.RecommendationsPrefix(userID)})
	return nil
}

// UpdatePreferences は好みのカテゴリを更新し、ユーザーのレコメンドを無効化する。
func (s *Service) UpdatePreferences(ctx context.Context, userID string, categories []string) ([]string, error) {
	if s.prefs == nil {
		return nil, errors.New("好みのカテゴリの更新は設定されていません")
	}
	updated, err := s.prefs.UpdatePreferences(ctx, userID, categories)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, scopeUserRecommendations, nil, []string{cache.RecommendationsPrefix(userID)})
	return updated, nil
}

// DeleteArticle は記事を削除し、記事単体のキーと一覧系のキーを無効化する。
func (s *Service) DeleteArticle(ctx context.Context, id string) error {
	if err := s.articles.DeleteArticle(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, scopeArticle, []string{cache.ArticleKey(id)}, cache.ListingFamilies)
	return nil
}

// InvalidateArticles は取り込みや保持期間切れの削除で変更された記事に関するキーを無効化する。
// 変更が1件もない場合は何もしない。
func (s *Service) InvalidateArticles(ctx context.Context, changedIDs []string) {
	if len(changedIDs) == 0 {
		return
	}
	keys := make([]string, len(changedIDs))
	for i, id := range changedIDs {
		keys[i] = cache.ArticleKey(id)
	}
	s.invalidate(ctx, scopeArticles, keys, cache.ListingFamilies)
}

// invalidate はキーとプレフィックスを削除する。
// 書き込みは確定済みのため、リクエストのキャンセルに影響されない独立したタイムアウトで実行し、
// 失敗はログに残して呼び出し元には返さない。
func (s *Service) invalidate(ctx context.Context, scope string, keys []string, prefixes []string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.InvalidateTimeout)
	defer cancel()

	deleted := 0
	if len(keys) > 0 {
		if err := s.cache.Delete(ctx, keys...); err != nil {
			slog.Warn("キャッシュの無効化に失敗しました",
				slog.String("scope", scope),
				slog.Any("keys", keys),
				slog.String("error", err.Error()),
			)
		} else {
			deleted += len(keys)
		}
	}
	for _, prefix := range prefixes {
		n, err := s.cache.DeletePrefix(ctx, prefix)
		deleted += n
		if err != nil {
			slog.Warn("キャッシュの無効化に失敗しました",
				slog.String("scope", scope),
				slog.String("prefix", prefix),
				slog.String("error", err.Error()),
			)
		}
	}
	s.metrics.RecordInvalidation(scope, deleted)
}

// readThrough はキャッシュを参照し、ミスの場合はloadの結果を保存して返す。
// loadのエラーは保存せずそのまま返す。
func readThrough[T any](
	ctx context.Context,
	s *Service,
	op, key string,
	ttl time.Duration,
	load func(ctx context.Context) (*T, error),
) (*T, error) {
	if v, ok := lookup[T](ctx, s, op, key); ok {
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		return nil, err
	}

	store(ctx, s, op, key, v, ttl)
	return v, nil
}

func lookup[T any](ctx context.Context, s *Service, op, key string) (*T, bool) {
	cctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	b, err := s.cache.Get(cctx, key)
	if errors.Is(err, cache.ErrMiss) {
		s.metrics.RecordCacheLookup(op, metrics.CacheMiss)
		return nil, false
	}
	if err != nil {
		s.metrics.RecordCacheLookup(op, metrics.CacheError)
		s.metrics.RecordCacheError(op)
		slog.Debug("キャッシュの参照に失敗したためデータストアを参照します",
			slog.String("operation", op),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	v, err := decode[T](b)
	if err != nil {
		s.metrics.RecordCacheLookup(op, metrics.CacheError)
		s.metrics.RecordCacheError(op)
		slog.Debug("キャッシュのペイロードを破棄します",
			slog.String("operation", op),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		if err := s.cache.Delete(cctx, key); err != nil {
			slog.Debug("破損したキャッシュの削除に失敗しました",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}

	s.metrics.RecordCacheLookup(op, metrics.CacheHit)
	return v, true
}

func store[T any](ctx context.Context, s *Service, op, key string, v *T, ttl time.Duration) {
	b, err := encode(v)
	if err != nil {
		s.metrics.RecordCacheError(op)
		slog.Debug("キャッシュの保存をスキップします",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)
	defer cancel()

	if err := s.cache.Set(cctx, key, b, ttl); err != nil {
		s.metrics.RecordCacheError(op)
		slog.Debug("キャッシュの保存に失敗しました",
			slog.String("operation", op),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
