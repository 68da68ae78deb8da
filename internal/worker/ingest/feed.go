package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/newsman/internal/model"
	"github.com/hitoshi/newsman/internal/security"
)

// feedAccept はフィード取得時のAcceptヘッダー。サイトURLの場合に備えてHTMLも受け付ける。
const feedAccept = "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.5, */*;q=0.1"

// FeedSource はRSS/Atomフィードから記事を取得する。
// 設定されたURLがHTMLページの場合は、headのフィードリンクを検出して取得する。
type FeedSource struct {
	client      *retryablehttp.Client
	feedURL     string
	name        string
	maxBodySize int64

	mu          sync.Mutex
	resolvedURL string
}

var _ Source = (*FeedSource)(nil)

// NewFeedSource はFeedSourceを生成する。ソース名はフィードURLのホスト名。
func NewFeedSource(client *retryablehttp.Client, feedURL string, maxBodySize int64) (*FeedSource, error) {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("フィードURLが不正です: %q", feedURL)
	}
	return &FeedSource{
		client:      client,
		feedURL:     feedURL,
		name:        u.Hostname(),
		maxBodySize: maxBodySize,
	}, nil
}

// Name はソース名を返す。
func (s *FeedSource) Name() string {
	return s.name
}

// Fetch はフィードを取得してパースする。
func (s *FeedSource) Fetch(ctx context.Context) ([]model.IncomingArticle, error) {
	target := s.target()
	doc, err := s.fetch(ctx, target)
	if err != nil {
		return nil, err
	}

	// 初回のみ: サイトURLからフィードURLを検出する
	if target == s.feedURL && !isFeedDocument(doc.ContentType, doc.Body) && isHTMLDocument(doc.ContentType) {
		link, ok := selectFeedLink(parseFeedLinks(doc.Body, s.feedURL), s.feedURL)
		if !ok {
			return nil, fmt.Errorf("フィードが見つかりません: %s", s.feedURL)
		}
		if !security.IsHTTPURL(link.URL) {
			return nil, fmt.Errorf("検出したフィードURLが不正です: %q", link.URL)
		}
		if doc, err = s.fetch(ctx, link.URL); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.resolvedURL = link.URL
		s.mu.Unlock()
	}

	parsed, err := gofeed.NewParser().ParseString(string(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗: %w", err)
	}

	sourceName := parsed.Title
	if sourceName == "" {
		sourceName = s.name
	}
	return convertFeedItems(parsed.Items, sourceName), nil
}

// target は取得するURLを返す。検出済みのフィードURLがあればそれを使う。
func (s *FeedSource) target() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolvedURL != "" {
		return s.resolvedURL
	}
	return s.feedURL
}

func (s *FeedSource) fetch(ctx context.Context, target string) (*document, error) {
	doc, err := get(ctx, s.client, target, feedAccept, s.maxBodySize)
	if err != nil {
		return nil, err
	}
	if doc.Status != http.StatusOK {
		return nil, fmt.Errorf("フィードの取得に失敗しました: HTTPステータス %d", doc.Status)
	}
	return doc, nil
}

// convertFeedItems はgofeedの記事を取り込み用の記事に変換する。
func convertFeedItems(items []*gofeed.Item, sourceName string) []model.IncomingArticle {
	articles := make([]model.IncomingArticle, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		a := model.IncomingArticle{
			Title:       item.Title,
			Description: item.Description,
			Content:     item.Content,
			URL:         item.Link,
			Source:      sourceName,
		}

		if item.Author != nil {
			a.Author = item.Author.Name
		}
		if a.Author == "" && len(item.Authors) > 0 && item.Authors[0] != nil {
			a.Author = item.Authors[0].Name
		}

		if item.PublishedParsed != nil {
			a.PublishedAt = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			a.PublishedAt = item.UpdatedParsed.UTC()
		}

		if item.Image != nil {
			a.ImageURL = item.Image.URL
		}

		if a.Content == "" {
			a.Content = item.Description
		}

		// リンクがなくGUIDがURL形式の場合はGUIDを記事URLとして使用
		if a.URL == "" && (strings.HasPrefix(item.GUID, "http://") || strings.HasPrefix(item.GUID, "https://")) {
			a.URL = item.GUID
		}

		articles = append(articles, a)
	}

	return articles
}
