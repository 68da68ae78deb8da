package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/newsman/internal/cache"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Cache
	CacheBackend           string
	RedisURL               string
	CacheTimeout           time.Duration
	CacheInvalidateTimeout time.Duration
	CacheTTLArticles       time.Duration
	CacheTTLSearch         time.Duration
	CacheTTLArticle        time.Duration
	CacheTTLRecommend      time.Duration

	// Ingest
	NewsAPIKey          string
	NewsAPIEndpoint     string
	NewsAPIQuery        string
	NewsAPILookback     time.Duration
	FeedURLs            []string
	IngestInterval      time.Duration
	IngestOnServe       bool
	IngestMaxConcurrent int

	// Fetch
	FetchTimeout    time.Duration
	FetchMaxSize    int64
	FetchMaxRetries int

	// Retention
	RetentionDays   int
	CleanupInterval time.Duration

	// Rate Limit
	RateLimitGeneral int

	// Paging
	DefaultPageLimit int
	MaxPageLimit     int

	// Identity
	IdentityHeader string
	AdminUserIDs   []string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel slog.Level
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合や値が矛盾する場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.CacheBackend = strings.ToLower(getEnvString("CACHE_BACKEND", cache.BackendRedis))
	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.CacheBackend == cache.BackendRedis && cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.CacheBackend != cache.BackendRedis && cfg.CacheBackend != cache.BackendMemory {
		return nil, fmt.Errorf("CACHE_BACKEND must be %q or %q: %q", cache.BackendRedis, cache.BackendMemory, cfg.CacheBackend)
	}

	// Optional fields with defaults
	cfg.CacheTimeout = getEnvDuration("CACHE_TIMEOUT", 150*time.Millisecond)
	cfg.CacheInvalidateTimeout = getEnvDuration("CACHE_INVALIDATE_TIMEOUT", 2*time.Second)
	cfg.CacheTTLArticles = getEnvDuration("CACHE_TTL_ARTICLES", 5*time.Minute)
	cfg.CacheTTLSearch = getEnvDuration("CACHE_TTL_SEARCH", 15*time.Minute)
	cfg.CacheTTLArticle = getEnvDuration("CACHE_TTL_ARTICLE", 60*time.Minute)
	cfg.CacheTTLRecommend = getEnvDuration("CACHE_TTL_RECOMMENDATIONS", 30*time.Minute)

	cfg.NewsAPIKey = os.Getenv("NEWS_API_KEY")
	cfg.NewsAPIEndpoint = getEnvString("NEWS_API_ENDPOINT", "https://newsapi.org/v2/everything")
	cfg.NewsAPIQuery = getEnvString("NEWS_API_QUERY", "technology")
	cfg.NewsAPILookback = getEnvDuration("NEWS_API_LOOKBACK", 720*time.Hour)
	cfg.FeedURLs = getEnvList("FEED_URLS")
	cfg.IngestInterval = getEnvDuration("INGEST_INTERVAL", time.Hour)
	cfg.IngestOnServe = getEnvBool("INGEST_ON_SERVE", false)
	cfg.IngestMaxConcurrent = getEnvInt("INGEST_MAX_CONCURRENT", 4)

	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchMaxRetries = getEnvInt("FETCH_MAX_RETRIES", 3)

	cfg.RetentionDays = getEnvInt("RETENTION_DAYS", 90)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)

	cfg.DefaultPageLimit = getEnvInt("DEFAULT_PAGE_LIMIT", 20)
	cfg.MaxPageLimit = getEnvInt("MAX_PAGE_LIMIT", 100)
	if cfg.DefaultPageLimit > cfg.MaxPageLimit {
		return nil, fmt.Errorf("DEFAULT_PAGE_LIMIT (%d) must not exceed MAX_PAGE_LIMIT (%d)", cfg.DefaultPageLimit, cfg.MaxPageLimit)
	}

	cfg.IdentityHeader = getEnvString("IDENTITY_HEADER", "X-User-ID")
	cfg.AdminUserIDs = getEnvList("ADMIN_USER_IDS")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvLogLevel("LOG_LEVEL", slog.LevelInfo)

	return cfg, nil
}

// IngestEnabled は取り込み元が1つ以上設定されているかを返す。
func (c *Config) IngestEnabled() bool {
	return c.NewsAPIKey != "" || len(c.FeedURLs) > 0
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

// getEnvDuration は正の期間のみ受け付ける。0以下は既定値として扱う。
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvList はカンマ区切りの値を空要素を除いて返す。
func getEnvList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnvLogLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return level
}
