// Package cleanup は保持期間を超過した記事の自動削除ジョブを提供する。
// 保存済み記事と既読履歴は外部キーのCASCADE削除で同時に削除される。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/newsman/internal/metrics"
)

// ArticleDeleter は公開日時が古い記事を削除するインターフェース。
type ArticleDeleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Invalidator は削除した記事に関するキャッシュを無効化するインターフェース。
type Invalidator interface {
	InvalidateArticles(ctx context.Context, changedIDs []string)
}

// CleanupJob は保持期間を超過した記事の削除ジョブ。冪等に実行できる。
type CleanupJob struct {
	articles    ArticleDeleter
	invalidator Invalidator
	metrics     metrics.IngestRecorder
	logger      *slog.Logger
	now         func() time.Time

	RetentionDays int // 記事の保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(articles ArticleDeleter, invalidator Invalidator, rec metrics.IngestRecorder, logger *slog.Logger) *CleanupJob {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &CleanupJob{
		articles:      articles,
		invalidator:   invalidator,
		metrics:       rec,
		logger:        logger,
		now:           time.Now,
		RetentionDays: 90,
	}
}

// Run は公開日時がRetentionDays日より前の記事を削除し、削除した件数を返す。
// 1件以上削除した場合は記事単体と一覧系のキャッシュを無効化する。
func (j *CleanupJob) Run(ctx context.Context) (int, error) {
	start := time.Now()
	cutoff := j.now().AddDate(0, 0, -j.RetentionDays)

	ids, err := j.articles.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("記事クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return 0, fmt.Errorf("記事クリーンアップの実行に失敗: %w", err)
	}

	if len(ids) > 0 && j.invalidator != nil {
		j.invalidator.InvalidateArticles(ctx, ids)
	}
	j.metrics.RecordRetentionDeleted(len(ids))

	j.logger.Info("記事クリーンアップジョブが完了しました",
		slog.Int("deleted_count", len(ids)),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return len(ids), nil
}

// Start は起動直後に1回、その後interval間隔でRunを実行する。
// コンテキストがキャンセルされるまで戻らない。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// エラーはRun内でログに記録済み
	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
