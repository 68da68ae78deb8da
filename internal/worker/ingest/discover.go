package ingest

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// feedLink はHTMLのheadから検出したフィードへのリンク。
type feedLink struct {
	URL   string
	Atom  bool
	Title string
}

// feedMediaTypes はフィードとして扱うContent-Type。
var feedMediaTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
}

// mediaType はContent-Typeからパラメータを除いたメディアタイプを小文字で返す。
func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mt)
}

// isFeedDocument はレスポンスがRSS/Atomフィードかを判定する。
// 汎用XMLのContent-Typeではボディ先頭のルート要素で判定する。
func isFeedDocument(contentType string, body []byte) bool {
	mt := mediaType(contentType)
	for _, ft := range feedMediaTypes {
		if mt == ft {
			return true
		}
	}
	if mt != "text/xml" && mt != "application/xml" {
		return false
	}
	return looksLikeFeedXML(body)
}

// looksLikeFeedXML はボディ先頭4KBにRSS/Atomのルート要素があるかを判定する。
func looksLikeFeedXML(body []byte) bool {
	prefix := strings.ToLower(string(body[:min(len(body), 4096)]))
	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// isHTMLDocument はContent-TypeがHTMLかを判定する。
func isHTMLDocument(contentType string) bool {
	return strings.Contains(mediaType(contentType), "html")
}

// parseFeedLinks はHTMLのheadから rel="alternate" のRSS/Atomリンクを抽出する。
// 相対URLはpageURLを基準に解決する。
func parseFeedLinks(htmlBody []byte, pageURL string) []feedLink {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var links []feedLink
	z := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			return links

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "head":
				inHead = true
				continue
			case "body":
				return links
			case "link":
			default:
				continue
			}
			if !inHead || !hasAttr {
				continue
			}

			var rel, typ, href, title string
			for more := true; more; {
				var key, val []byte
				key, val, more = z.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					typ = strings.ToLower(string(val))
				case "href":
					href = string(val)
				case "title":
					title = string(val)
				}
			}
			if rel != "alternate" || href == "" {
				continue
			}
			if typ != "application/rss+xml" && typ != "application/atom+xml" {
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			links = append(links, feedLink{
				URL:   base.ResolveReference(ref).String(),
				Atom:  typ == "application/atom+xml",
				Title: title,
			})

		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" {
				return links
			}
		}
	}
}

// selectFeedLink は候補から取り込むフィードを1つ選ぶ。
// 優先順位は同一ホスト、Atom、出現順。
func selectFeedLink(links []feedLink, pageURL string) (feedLink, bool) {
	if len(links) == 0 {
		return feedLink{}, false
	}

	pageHost := hostOf(pageURL)
	best, bestScore := 0, -1
	for i, l := range links {
		score := 0
		if hostOf(l.URL) == pageHost {
			score += 100
		}
		if l.Atom {
			score += 10
		}
		// 同点は先に現れた候補を残す
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return links[best], true
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
