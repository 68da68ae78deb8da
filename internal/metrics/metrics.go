// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// キャッシュ参照の結果ラベル
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// CacheRecorder はキャッシュ層のメトリクス記録インターフェース。
type CacheRecorder interface {
	RecordCacheLookup(operation, result string)
	RecordCacheError(operation string)
	RecordInvalidation(scope string, keys int)
}

// RecommendRecorder はレコメンドエンジンのメトリクス記録インターフェース。
type RecommendRecorder interface {
	RecordRecommendation(duration time.Duration, candidates int)
}

// IngestRecorder は取り込みワーカーのメトリクス記録インターフェース。
type IngestRecorder interface {
	RecordIngestArticle(source, result string)
	RecordIngestRun(source, status string, duration time.Duration)
	RecordRetentionDeleted(count int)
}

// HTTPRecorder はHTTPレスポンスのメトリクス記録インターフェース。
type HTTPRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cacheRequests    *prometheus.CounterVec
	cacheErrors      *prometheus.CounterVec
	invalidations    *prometheus.CounterVec
	invalidatedKeys  *prometheus.CounterVec
	recommendLatency prometheus.Histogram
	recommendCands   prometheus.Histogram
	ingestArticles   *prometheus.CounterVec
	ingestRuns       *prometheus.CounterVec
	ingestLatency    prometheus.Histogram
	retentionDeleted prometheus.Counter
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsman_cache_requests_total",
			Help: "操作別・結果別のキャッシュ参照数",
		}, []string{"operation", "result"}),
		cacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsman_cache_errors_total",
			Help: "縮退したキャッシュ操作の数",
		}, []string{"operation"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsman_cache_invalidations_total",
			Help: "スコープ別のキャッシュ無効化の実行数",
		}, []string{"scope"}),
		invalidatedKeys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsman_cache_invalidated_keys_total",
			Help: "無効化で削除されたキャッシュキーの数",
		}, []string{"scope"}),
		recommendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsman_recommend_duration_seconds",
			Help:    "レコメンド計算のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		recommendCands: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsman_recommend_candidates",
			Help:    "レコメンド1回あたりの候補記事数",
			Buckets: prometheus.ExponentialBuckets(10, 4, 6),
		}),
		ingestArticles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsman_ingest_articles_total",
			Help: "ソース別・結果別の取り込み記事数",
		}, []string{"source", "result"}),
		ingestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsman_ingest_runs_total",
			Help: "ソース別・状態別の取り込み実行数",
		}, []string{"source", "status"}),
		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsman_ingest_duration_seconds",
			Help:    "ソース1件あたりの取り込み時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		retentionDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsman_retention_deleted_total",
			Help: "保持期間切れで削除された記事の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.cacheRequests,
		c.cacheErrors,
		c.invalidations,
		c.invalidatedKeys,
		c.recommendLatency,
		c.recommendCands,
		c.ingestArticles,
		c.ingestRuns,
		c.ingestLatency,
		c.retentionDeleted,
		c.httpStatus,
	)

	return c
}

// RecordCacheLookup はキャッシュ参照の結果（hit, miss, error）を記録する。
func (c *Collector) RecordCacheLookup(operation, result string) {
	c.cacheRequests.WithLabelValues(operation, result).Inc()
}

// RecordCacheError は縮退したキャッシュ操作を記録する。
func (c *Collector) RecordCacheError(operation string) {
	c.cacheErrors.WithLabelValues(operation).Inc()
}

// RecordInvalidation は無効化の実行と削除キー数を記録する。
func (c *Collector) RecordInvalidation(scope string, keys int) {
	c.invalidations.WithLabelValues(scope).Inc()
	c.invalidatedKeys.WithLabelValues(scope).Add(float64(keys))
}

// RecordRecommendation はレコメンドのレイテンシと候補数を記録する。
func (c *Collector) RecordRecommendation(duration time.Duration, candidates int) {
	c.recommendLatency.Observe(duration.Seconds())
	c.recommendCands.Observe(float64(candidates))
}

// RecordIngestArticle は記事1件の取り込み結果を記録する。
func (c *Collector) RecordIngestArticle(source, result string) {
	c.ingestArticles.WithLabelValues(source, result).Inc()
}

// RecordIngestRun はソース1件の取り込み実行を記録する。
func (c *Collector) RecordIngestRun(source, status string, duration time.Duration) {
	c.ingestRuns.WithLabelValues(source, status).Inc()
	c.ingestLatency.Observe(duration.Seconds())
}

// RecordRetentionDeleted は保持期間切れで削除した記事数を記録する。
func (c *Collector) RecordRetentionDeleted(count int) {
	c.retentionDeleted.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しない実装。テストやメトリクス不要な構成で使用する。
type Nop struct{}

func (Nop) RecordCacheLookup(string, string) {}
func (Nop) RecordCacheError(string) {}
func (Nop) RecordInvalidation(string, int) {}
func (Nop) RecordRecommendation(time.Duration, int) {}
func (Nop) RecordIngestArticle(string, string) {}
func (Nop) RecordIngestRun(string, string, time.Duration) {}
func (Nop) RecordRetentionDeleted(int) {}
func (Nop) RecordHTTPStatus(int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ CacheRecorder     = (*Collector)(nil)
	_ RecommendRecorder = (*Collector)(nil)
	_ IngestRecorder    = (*Collector)(nil)
	_ HTTPRecorder      = (*Collector)(nil)
	_ CacheRecorder     = Nop{}
	_ RecommendRecorder = Nop{}
	_ IngestRecorder    = Nop{}
	_ HTTPRecorder      = Nop{}
)
