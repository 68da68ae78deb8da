package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/hitoshi/newsman/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// newTestClient はhttptestサーバーに接続できる短い待機時間のクライアントを返す。
func newTestClient(maxRetries int) *retryablehttp.Client {
	c := NewHTTPClient(&http.Client{Timeout: 5 * time.Second}, maxRetries, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.RetryWaitMin = time.Millisecond
	c.RetryWaitMax = 5 * time.Millisecond
	return c
}

const newsAPIBody = `{
  "status": "ok",
  "totalResults": 2,
  "articles": [
    {
      "source": {"id": null, "name": "Tech Daily"},
      "author": "Jane Roe",
      "title": "New chip doubles battery life",
      "description": "A research team announced a new processor.",
      "url": "https://technews.example.com/chip",
      "urlToImage": "https://technews.example.com/chip.jpg",
      "publishedAt": "2025-02-28T09:30:00Z",
      "content": "The processor..."
    },
    {
      "source": {"id": "x", "name": "Wire"},
      "author": null,
      "title": "Undated story",
      "description": null,
      "url": "https://wire.example.com/undated",
      "urlToImage": null,
      "publishedAt": "not-a-date",
      "content": null
    }
  ]
}`

func TestNewsAPISource_Fetch(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"q":      q.Get("q"),
			"from":   q.Get("from"),
			"sortBy": q.Get("sortBy"),
			"apiKey": q.Get("apiKey"),
		}
		if ua := r.Header.Get("User-Agent"); ua != userAgent {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, newsAPIBody)
	}))
	defer server.Close()

	src, err := NewNewsAPISource(newTestClient(0), NewsAPIConfig{
		Endpoint: server.URL,
		APIKey:   "secret",
		Lookback: 30 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewNewsAPISource error: %v", err)
	}
	src.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	wantQuery := map[string]string{
		"q":      "technology",
		"from":   "2025-01-30",
		"sortBy": "publishedAt",
		"apiKey": "secret",
	}
	if diff := cmp.Diff(wantQuery, gotQuery); diff != "" {
		t.Errorf("query mismatch (-want +got):\n%s", diff)
	}

	want := []model.IncomingArticle{
		{
			Title:       "New chip doubles battery life",
			Description: "A research team announced a new processor.",
			Content:     "The processor...",
			URL:         "https://technews.example.com/chip",
			ImageURL:    "https://technews.example.com/chip.jpg",
			Source:      "Tech Daily",
			Author:      "Jane Roe",
			PublishedAt: time.Date(2025, 2, 28, 9, 30, 0, 0, time.UTC),
		},
		{
			Title:  "Undated story",
			URL:    "https://wire.example.com/undated",
			Source: "Wire",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("articles mismatch (-want +got):\n%s", diff)
	}
	if src.Name() != "newsapi" {
		t.Errorf("Name() = %q", src.Name())
	}
}

func TestNewsAPISource_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid."}`)
	}))
	defer server.Close()

	src, err := NewNewsAPISource(newTestClient(0), NewsAPIConfig{Endpoint: server.URL, APIKey: "bad"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = src.Fetch(context.Background())
	if err == nil || !strings.Contains(err.Error(), "apiKeyInvalid") {
		t.Errorf("error = %v, want apiKeyInvalid", err)
	}
}

func TestNewNewsAPISource_RequiresKey(t *testing.T) {
	if _, err := NewNewsAPISource(newTestClient(0), NewsAPIConfig{}); err == nil {
		t.Error("expected error for missing API key")
	}
}

// TestHTTPClient_RetriesServerErrors は5xxが再試行されることを検証する。
func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"status":"ok","articles":[]}`)
	}))
	defer server.Close()

	src, err := NewNewsAPISource(newTestClient(3), NewsAPIConfig{Endpoint: server.URL, APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

// TestHTTPClient_GivesUp は再試行回数を超えた場合にエラーを返すことを検証する。
func TestHTTPClient_GivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	src, err := NewFeedSource(newTestClient(2), server.URL+"/rss", 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Error("expected error after retries")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

const rssBody = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Science Weekly</title>
    <link>https://science.example.com</link>
    <item>
      <title>Telescope finds water vapor</title>
      <link>https://science.example.com/water</link>
      <description>&lt;p&gt;Astronomers report&lt;/p&gt;</description>
      <author>news@science.example.com (Ann Lee)</author>
      <pubDate>Fri, 28 Feb 2025 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>GUID only</title>
      <guid>https://science.example.com/guid-only</guid>
      <pubDate>Thu, 27 Feb 2025 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestFeedSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssBody)
	}))
	defer server.Close()

	src, err := NewFeedSource(newTestClient(0), server.URL+"/rss", 0)
	if err != nil {
		t.Fatal(err)
	}
	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	first := got[0]
	if first.Title != "Telescope finds water vapor" || first.URL != "https://science.example.com/water" {
		t.Errorf("first = %+v", first)
	}
	if first.Source != "Science Weekly" {
		t.Errorf("Source = %q, want feed title", first.Source)
	}
	if !first.PublishedAt.Equal(time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("PublishedAt = %v", first.PublishedAt)
	}
	if first.Content == "" {
		t.Error("Content should fall back to description")
	}
	if got[1].URL != "https://science.example.com/guid-only" {
		t.Errorf("URL = %q, want GUID fallback", got[1].URL)
	}
}

func TestFeedSource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, ""},
		{"not a feed", http.StatusOK, "plain text body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			src, err := NewFeedSource(newTestClient(0), server.URL, 0)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := src.Fetch(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewFeedSource_InvalidURL(t *testing.T) {
	if _, err := NewFeedSource(newTestClient(0), "not a url", 0); err == nil {
		t.Error("expected error")
	}
	src, err := NewFeedSource(newTestClient(0), "https://blog.example.org/feed.xml", 0)
	if err != nil {
		t.Fatal(err)
	}
	if src.Name() != "blog.example.org" {
		t.Errorf("Name() = %q", src.Name())
	}
}
