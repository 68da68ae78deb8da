package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/newsman/internal/config"
	"github.com/hitoshi/newsman/internal/database"
	"github.com/hitoshi/newsman/internal/handler"
	"github.com/hitoshi/newsman/internal/logger"
	"github.com/hitoshi/newsman/internal/metrics"
	"github.com/hitoshi/newsman/internal/middleware"
)

// dbPingTimeout は起動時のDB接続確認のタイムアウト。
const dbPingTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	if cmd == CommandHelp {
		WriteUsage(w)
		return nil
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("cache_backend", cfg.CacheBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DBとキャッシュを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxが終了するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	c, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	comp := newComponents(db, c, cfg)

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		HTTPRecorder:      comp.metrics,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		IdentityHeader:    cfg.IdentityHeader,
		AdminUserIDs:      cfg.AdminUserIDs,
		RateLimiter:       rateLimiter,
		HealthChecker:     db,
		MetricsHandler:    metrics.Handler(comp.registry),
		ArticleService:    comp.cached,
		Paging: handler.PagingConfig{
			DefaultLimit: cfg.DefaultPageLimit,
			MaxLimit:     cfg.MaxPageLimit,
		},
		UserService: handler.NewUserServiceAdapter(comp.users, comp.cached),
	})

	// 単一プロセス構成では取り込みとクリーンアップもサーバー内で動かす
	jobsCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()
	waitJobs := func() {}
	if cfg.IngestOnServe {
		waitJobs = startBackgroundJobs(jobsCtx, cfg, comp, slog.Default())
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			cancelJobs()
			waitJobs()
			return fmt.Errorf("server listen error: %w", err)
		}
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	cancelJobs()
	waitJobs()

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 取り込みスケジューラと保持期間クリーンアップを実行し、ctxが終了するまでブロックする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established (worker)")

	// キャッシュは取り込み後の無効化のためにだけ使う
	c, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	comp := newComponents(db, c, cfg)

	slog.Info("worker starting",
		slog.Duration("ingest_interval", cfg.IngestInterval),
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Int("max_concurrent", cfg.IngestMaxConcurrent),
		slog.Int("retention_days", cfg.RetentionDays),
	)

	wait := startBackgroundJobs(ctx, cfg, comp, slog.Default())
	wait()

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// 解析できないURLは全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
