// Package ingest は外部ニュースソースからの記事取り込みを提供する。
// ソースの取得、サニタイズ、カテゴリ分類、URLによるUPSERT、キャッシュの無効化を行う。
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/hitoshi/newsman/internal/model"
)

// userAgent は取り込みリクエストに付与するUser-Agent。
const userAgent = "Newsman/1.0 News Aggregator"

// defaultMaxBodySize はレスポンスボディの既定の上限（5MiB）。
const defaultMaxBodySize int64 = 5 << 20

// Source は記事の取得元。
type Source interface {
	// Name はログとメトリクスで使用するソース名を返す。
	Name() string
	// Fetch はソースから記事を取得する。返す記事は未サニタイズ。
	Fetch(ctx context.Context) ([]model.IncomingArticle, error)
}

// NewHTTPClient は取り込み用のリトライ付きHTTPクライアントを生成する。
// baseには通常security.NewSafeClientの結果を渡す。
// 接続エラー、429、5xxは指数バックオフで最大maxRetries回再試行する。
func NewHTTPClient(base *http.Client, maxRetries int, logger *slog.Logger) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.HTTPClient = base
	c.RetryMax = maxRetries
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 10 * time.Second
	c.Logger = logger
	return c
}

// document は取得したレスポンスの内容。
type document struct {
	Body        []byte
	Status      int
	ContentType string
}

// get はGETリクエストを送信し、上限付きでボディを読み込む。
func get(ctx context.Context, client *retryablehttp.Client, url, accept string, maxBody int64) (*document, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}
	return &document{Body: body, Status: resp.StatusCode, ContentType: resp.Header.Get("Content-Type")}, nil
}
