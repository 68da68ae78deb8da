package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/newsman/internal/metrics"
	"github.com/hitoshi/newsman/internal/model"
	"github.com/hitoshi/newsman/internal/security"
)

// 記事1件の取り込み結果ラベル
const (
	ResultInserted = "inserted"
	ResultUpdated  = "updated"
	ResultSkipped  = "skipped"
	ResultFailed   = "failed"
)

// ソース1件の取り込み状態ラベル
const (
	RunSuccess = "success"
	RunPartial = "partial"
	RunError   = "error"
)

// ArticleUpserter は記事をURLでUPSERTするインターフェース。
type ArticleUpserter interface {
	UpsertByURL(ctx context.Context, article *model.Article) (id string, inserted bool, err error)
}

// Invalidator は記事の変更後にキャッシュを無効化するインターフェース。
type Invalidator interface {
	InvalidateArticles(ctx context.Context, changedIDs []string)
}

// Result はソース1件の取り込み結果。
type Result struct {
	Fetched    int
	Inserted   int
	Updated    int
	Skipped    int
	Failed     int
	ChangedIDs []string
}

// Ingester はソースから取得した記事を検証、サニタイズ、分類して保存する。
type Ingester struct {
	articles    ArticleUpserter
	sanitizer   security.ContentSanitizer
	invalidator Invalidator
	metrics     metrics.IngestRecorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewIngester はIngesterを生成する。invalidatorとrecがnilの場合は何もしない実装を使う。
func NewIngester(
	articles ArticleUpserter,
	sanitizer security.ContentSanitizer,
	invalidator Invalidator,
	rec metrics.IngestRecorder,
	logger *slog.Logger,
) *Ingester {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if invalidator == nil {
		invalidator = nopInvalidator{}
	}
	return &Ingester{
		articles:    articles,
		sanitizer:   sanitizer,
		invalidator: invalidator,
		metrics:     rec,
		logger:      logger,
		now:         time.Now,
	}
}

type nopInvalidator struct{}

func (nopInvalidator) InvalidateArticles(context.Context, []string) {}

// Ingest はソースから記事を取得して保存する。
// 記事単位の失敗は数えて継続し、ソースの取得失敗とキャンセルのみエラーを返す。
// 1件以上の記事が変更された場合は保存後にキャッシュを無効化する。
func (g *Ingester) Ingest(ctx context.Context, src Source) (Result, error) {
	start := time.Now()
	var res Result

	incoming, err := src.Fetch(ctx)
	if err != nil {
		g.metrics.RecordIngestRun(src.Name(), RunError, time.Since(start))
		return res, fmt.Errorf("ソース %s の取得に失敗: %w", src.Name(), err)
	}
	res.Fetched = len(incoming)

	now := g.now()
	var runErr error
	for i := range incoming {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		article, reason := g.prepare(&incoming[i], src.Name(), now)
		if article == nil {
			res.Skipped++
			g.metrics.RecordIngestArticle(src.Name(), ResultSkipped)
			g.logger.Debug("記事をスキップしました",
				slog.String("source", src.Name()),
				slog.String("url", incoming[i].URL),
				slog.String("reason", reason),
			)
			continue
		}

		id, inserted, err := g.articles.UpsertByURL(ctx, article)
		if err != nil {
			res.Failed++
			g.metrics.RecordIngestArticle(src.Name(), ResultFailed)
			g.logger.Warn("記事の保存に失敗しました",
				slog.String("source", src.Name()),
				slog.String("url", article.URL),
				slog.String("error", err.Error()),
			)
			continue
		}

		res.ChangedIDs = append(res.ChangedIDs, id)
		if inserted {
			res.Inserted++
			g.metrics.RecordIngestArticle(src.Name(), ResultInserted)
		} else {
			res.Updated++
			g.metrics.RecordIngestArticle(src.Name(), ResultUpdated)
		}
	}

	// キャンセルされた場合も保存済みの変更は反映する
	g.invalidator.InvalidateArticles(ctx, res.ChangedIDs)

	status := RunSuccess
	switch {
	case runErr != nil:
		status = RunError
	case res.Failed > 0:
		status = RunPartial
	}
	duration := time.Since(start)
	g.metrics.RecordIngestRun(src.Name(), status, duration)

	g.logger.Info("記事の取り込みが完了しました",
		slog.String("source", src.Name()),
		slog.String("status", status),
		slog.Int("fetched", res.Fetched),
		slog.Int("inserted", res.Inserted),
		slog.Int("updated", res.Updated),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return res, runErr
}

// prepare は取得した記事を検証して保存用の記事に変換する。
// 保存できない記事の場合はnilとスキップ理由を返す。
func (g *Ingester) prepare(in *model.IncomingArticle, sourceName string, now time.Time) (*model.Article, string) {
	title := g.sanitizer.SanitizeText(in.Title)
	if title == "" {
		return nil, "タイトルが空です"
	}
	articleURL := strings.TrimSpace(in.URL)
	if !security.IsHTTPURL(articleURL) {
		return nil, "URLが不正です"
	}
	if in.PublishedAt.IsZero() {
		return nil, "公開日時がありません"
	}
	if in.PublishedAt.After(now) {
		return nil, "公開日時が未来です"
	}

	description := g.sanitizer.SanitizeText(in.Description)
	source := g.sanitizer.SanitizeText(in.Source)
	if source == "" {
		source = sourceName
	}
	imageURL := strings.TrimSpace(in.ImageURL)
	if !security.IsHTTPURL(imageURL) {
		imageURL = ""
	}

	return &model.Article{
		Title:       title,
		Description: description,
		Content:     g.sanitizer.SanitizeHTML(in.Content),
		URL:         articleURL,
		ImageURL:    imageURL,
		Source:      source,
		Author:      g.sanitizer.SanitizeText(in.Author),
		PublishedAt: in.PublishedAt.UTC(),
		Category:    Categorize(title, description),
	}, ""
}
