package evidence

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"
)

const (
	DefaultNewsFeed = "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US"
	maxBodyRunes    = 1200
	// Feed summaries shorter than this trigger an article page fetch.
	minBodyRunes = 160
)

// NewsSource reads recent headlines from an RSS feed and, for thin feed
// summaries, scrapes the article page body.
type NewsSource struct {
	feedURL string
	limit   int
	parser  *gofeed.Parser
	client  *resty.Client
	scrape  bool
}

// NewNewsSource reads feedURL, where %s is replaced by the symbol.
func NewNewsSource(feedURL string, limit int, scrape bool) *NewsSource {
	if feedURL == "" {
		feedURL = DefaultNewsFeed
	}
	if limit <= 0 {
		limit = 5
	}
	client := resty.New().
		SetTimeout(10*time.Second).
		SetHeader("User-Agent", userAgent)
	return &NewsSource{
		feedURL: feedURL,
		limit:   limit,
		parser:  gofeed.NewParser(),
		client:  client,
		scrape:  scrape,
	}
}

func (s *NewsSource) Name() string { return "news" }

func (s *NewsSource) Fetch(ctx context.Context, symbol string, part *Evidence) error {
	feedURL := s.feedURL
	if strings.Contains(feedURL, "%s") {
		feedURL = fmt.Sprintf(feedURL, url.QueryEscape(symbol))
	}
	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return fmt.Errorf("news feed %s: %w", symbol, err)
	}

	for _, item := range feed.Items {
		if len(part.News) >= s.limit {
			break
		}
		if item == nil || strings.TrimSpace(item.Title) == "" {
			continue
		}
		a := Article{
			Title: strings.TrimSpace(item.Title),
			Link:  item.Link,
			Body:  cleanHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			a.Published = *item.PublishedParsed
		}
		if s.scrape && a.Link != "" && len([]rune(a.Body)) < minBodyRunes {
			if body, err := s.articleBody(ctx, a.Link); err == nil && body != "" {
				a.Body = body
			}
		}
		a.Body = truncateRunes(a.Body, maxBodyRunes)
		part.News = append(part.News, a)
	}
	return nil
}

// articleBody fetches link and joins its paragraph text.
func (s *NewsSource) articleBody(ctx context.Context, link string) (string, error) {
	resp, err := s.client.R().SetContext(ctx).Get(link)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return "", err
	}

	scope := doc.Find("article").First()
	if scope.Length() == 0 {
		scope = doc.Find("body")
	}
	var paras []string
	scope.Find("p").Each(func(_ int, p *goquery.Selection) {
		if t := strings.TrimSpace(p.Text()); t != "" {
			paras = append(paras, t)
		}
	})
	return strings.Join(paras, "\n"), nil
}

func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
