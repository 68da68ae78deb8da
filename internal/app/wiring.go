package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/newsman/internal/article"
	"github.com/hitoshi/newsman/internal/cache"
	"github.com/hitoshi/newsman/internal/cached"
	"github.com/hitoshi/newsman/internal/config"
	"github.com/hitoshi/newsman/internal/handler"
	"github.com/hitoshi/newsman/internal/metrics"
	"github.com/hitoshi/newsman/internal/recommend"
	"github.com/hitoshi/newsman/internal/repository"
	"github.com/hitoshi/newsman/internal/security"
	"github.com/hitoshi/newsman/internal/user"
	"github.com/hitoshi/newsman/internal/worker/cleanup"
	"github.com/hitoshi/newsman/internal/worker/ingest"
)

// memoryCacheCleanupInterval はメモリキャッシュの期限切れエントリ掃除間隔。
const memoryCacheCleanupInterval = time.Minute

// compile-time interface check
var (
	_ handler.ArticleServiceInterface = (*cached.Service)(nil)
	_ handler.PreferenceUpdater       = (*cached.Service)(nil)
	_ ingest.Invalidator              = (*cached.Service)(nil)
	_ cleanup.Invalidator             = (*cached.Service)(nil)
	_ ingest.ArticleUpserter          = (*repository.PostgresArticleRepo)(nil)
	_ cleanup.ArticleDeleter          = (*repository.PostgresArticleRepo)(nil)
)

// components はserveとworkerで共有する組み立て済みの依存関係。
type components struct {
	registry *prometheus.Registry
	metrics  *metrics.Collector

	articleRepo *repository.PostgresArticleRepo
	cache       cache.Cache

	users  *user.Service
	cached *cached.Service
}

// newRegistry はアプリケーションのメトリクスとGo/プロセスのメトリクスを登録したレジストリを返す。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// openCache は設定されたバックエンドのキャッシュを開く。
// 接続確認に失敗しても起動は継続する。キャッシュの障害はミスとして縮退するため。
func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	var c cache.Cache
	switch cfg.CacheBackend {
	case cache.BackendMemory:
		c = cache.NewMemoryCache(memoryCacheCleanupInterval)
	case cache.BackendRedis:
		rc, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis cache: %w", err)
		}
		c = rc
	default:
		return nil, fmt.Errorf("unknown cache backend: %q", cfg.CacheBackend)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		slog.Warn("cache is unreachable, continuing without it until it recovers",
			slog.String("backend", cfg.CacheBackend),
			slog.String("error", err.Error()),
		)
	} else {
		slog.Info("cache connection established", slog.String("backend", cfg.CacheBackend))
	}
	return c, nil
}

// cachedOptions は設定からキャッシュ層のオプションを組み立てる。
func cachedOptions(cfg *config.Config) cached.Options {
	return cached.Options{
		TTLs: cached.TTLs{
			Articles:        cfg.CacheTTLArticles,
			Search:          cfg.CacheTTLSearch,
			Article:         cfg.CacheTTLArticle,
			Recommendations: cfg.CacheTTLRecommend,
		},
		Timeout:           cfg.CacheTimeout,
		InvalidateTimeout: cfg.CacheInvalidateTimeout,
	}
}

// newComponents はリポジトリ、サービス、キャッシュ層を組み立てる。
func newComponents(db *sql.DB, c cache.Cache, cfg *config.Config) *components {
	reg, collector := newRegistry()

	articleRepo := repository.NewPostgresArticleRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	savedRepo := repository.NewPostgresSavedArticleRepo(db)

	articleSvc := article.NewService(articleRepo, profileRepo, cfg.MaxPageLimit)
	engine := recommend.NewEngine(articleRepo, profileRepo, collector)
	userSvc := user.NewService(profileRepo, savedRepo, articleRepo)

	return &components{
		registry:    reg,
		metrics:     collector,
		articleRepo: articleRepo,
		cache:       c,
		users:       userSvc,
		cached:      cached.NewService(articleSvc, engine, userSvc, c, cachedOptions(cfg), collector),
	}
}

// buildSources は設定から取り込み元を組み立てる。
// 不正なフィードURLは警告してスキップする。
func buildSources(cfg *config.Config, client *retryablehttp.Client, logger *slog.Logger) []ingest.Source {
	var sources []ingest.Source

	if cfg.NewsAPIKey != "" {
		if err := security.ValidateSourceURL(cfg.NewsAPIEndpoint); err != nil {
			logger.Warn("skipping news API source", slog.String("endpoint", cfg.NewsAPIEndpoint), slog.String("error", err.Error()))
		} else {
			src, err := ingest.NewNewsAPISource(client, ingest.NewsAPIConfig{
				Endpoint:    cfg.NewsAPIEndpoint,
				APIKey:      cfg.NewsAPIKey,
				Query:       cfg.NewsAPIQuery,
				Lookback:    cfg.NewsAPILookback,
				MaxBodySize: cfg.FetchMaxSize,
			})
			if err != nil {
				logger.Warn("skipping news API source", slog.String("error", err.Error()))
			} else {
				sources = append(sources, src)
			}
		}
	}

	for _, feedURL := range cfg.FeedURLs {
		if err := security.ValidateSourceURL(feedURL); err != nil {
			logger.Warn("skipping feed source", slog.String("url", feedURL), slog.String("error", err.Error()))
			continue
		}
		src, err := ingest.NewFeedSource(client, feedURL, cfg.FetchMaxSize)
		if err != nil {
			logger.Warn("skipping feed source", slog.String("url", feedURL), slog.String("error", err.Error()))
			continue
		}
		sources = append(sources, src)
	}

	return sources
}

// startBackgroundJobs は取り込みスケジューラとクリーンアップジョブをctxが終わるまで実行する。
// 取り込み元が無い場合はクリーンアップのみ実行する。戻り値は全ジョブの終了を待つ関数。
func startBackgroundJobs(ctx context.Context, cfg *config.Config, comp *components, logger *slog.Logger) (wait func()) {
	done := make(chan struct{}, 2)
	jobs := 0

	client := ingest.NewHTTPClient(security.NewSafeClient(cfg.FetchTimeout), cfg.FetchMaxRetries, logger)
	sources := buildSources(cfg, client, logger)
	if len(sources) > 0 {
		ingester := ingest.NewIngester(comp.articleRepo, security.NewSanitizer(), comp.cached, comp.metrics, logger)
		scheduler := ingest.NewScheduler(sources, ingester, logger, cfg.IngestMaxConcurrent)
		jobs++
		go func() {
			defer func() { done <- struct{}{} }()
			scheduler.Start(ctx, cfg.IngestInterval)
		}()
	} else {
		logger.Warn("no ingestion sources configured; set NEWS_API_KEY or FEED_URLS")
	}

	cleanupJob := cleanup.NewCleanupJob(comp.articleRepo, comp.cached, comp.metrics, logger)
	cleanupJob.RetentionDays = cfg.RetentionDays
	jobs++
	go func() {
		defer func() { done <- struct{}{} }()
		cleanupJob.Start(ctx, cfg.CleanupInterval)
	}()

	return func() {
		for range jobs {
			<-done
		}
	}
}
