package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/hitoshi/newsman/internal/model"
)

// DefaultNewsAPIEndpoint はnewsapi.orgの全記事検索エンドポイント。
const DefaultNewsAPIEndpoint = "https://newsapi.org/v2/everything"

// NewsAPIConfig はNewsAPISourceの設定。
type NewsAPIConfig struct {
	Endpoint string
	APIKey   string
	Query    string
	// Lookback は取得対象とする公開日時の遡り期間。
	Lookback    time.Duration
	MaxBodySize int64
}

// NewsAPISource はnewsapi.orgのeverythingエンドポイントから記事を取得する。
type NewsAPISource struct {
	client *retryablehttp.Client
	cfg    NewsAPIConfig
	now    func() time.Time
}

var _ Source = (*NewsAPISource)(nil)

// NewNewsAPISource はNewsAPISourceを生成する。APIキーが空の場合はエラーを返す。
func NewNewsAPISource(client *retryablehttp.Client, cfg NewsAPIConfig) (*NewsAPISource, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("NEWS_API_KEY が設定されていません")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultNewsAPIEndpoint
	}
	if cfg.Query == "" {
		cfg.Query = "technology"
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 30 * 24 * time.Hour
	}
	return &NewsAPISource{client: client, cfg: cfg, now: time.Now}, nil
}

// Name はソース名を返す。
func (s *NewsAPISource) Name() string {
	return "newsapi"
}

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

// Fetch は公開日時の新しい順に記事を取得する。
func (s *NewsAPISource) Fetch(ctx context.Context) ([]model.IncomingArticle, error) {
	doc, err := get(ctx, s.client, s.requestURL(), "application/json", s.cfg.MaxBodySize)
	if err != nil {
		return nil, err
	}
	status := doc.Status

	var resp newsAPIResponse
	if err := json.Unmarshal(doc.Body, &resp); err != nil {
		return nil, fmt.Errorf("NewsAPIレスポンスのデコードに失敗 (status=%d): %w", status, err)
	}
	if status != http.StatusOK || resp.Status != "ok" {
		return nil, fmt.Errorf("NewsAPIがエラーを返しました (status=%d, code=%s): %s", status, resp.Code, resp.Message)
	}

	articles := make([]model.IncomingArticle, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		in := model.IncomingArticle{
			Title:       a.Title,
			Description: a.Description,
			Content:     a.Content,
			URL:         a.URL,
			ImageURL:    a.URLToImage,
			Source:      a.Source.Name,
			Author:      a.Author,
		}
		// 日時が解釈できない記事はゼロ値のまま渡し、Ingesterで除外する
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			in.PublishedAt = t.UTC()
		}
		articles = append(articles, in)
	}
	return articles, nil
}

func (s *NewsAPISource) requestURL() string {
	from := s.now().Add(-s.cfg.Lookback).UTC().Format(time.DateOnly)
	q := url.Values{}
	q.Set("q", s.cfg.Query)
	q.Set("from", from)
	q.Set("sortBy", "publishedAt")
	q.Set("apiKey", s.cfg.APIKey)
	return s.cfg.Endpoint + "?" + q.Encode()
}
