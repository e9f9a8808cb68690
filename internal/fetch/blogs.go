package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ainews/internal/store"
)

// Several lab blogs block requests without a browser user agent.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

const maxScrapedPosts = 10

type blogSource struct {
	site       string
	name       string
	feedURL    string
	pageURL    string
	categories []string
}

func defaultBlogSources() []blogSource {
	return []blogSource{
		{
			site:       "openai",
			name:       "OpenAI",
			feedURL:    "https://openai.com/news/rss.xml",
			categories: []string{"AI", "Generative AI", "LLM"},
		},
		{
			site:       "anthropic",
			name:       "Anthropic",
			pageURL:    "https://www.anthropic.com/research",
			categories: []string{"AI", "LLM", "AI Safety"},
		},
		{
			site:       "deepmind",
			name:       "Google DeepMind",
			feedURL:    "https://deepmind.google/blog/rss.xml",
			categories: []string{"AI", "Machine Learning", "Research"},
		},
		{
			site:       "meta",
			name:       "Meta AI",
			pageURL:    "https://ai.meta.com/blog/",
			categories: []string{"AI", "Machine Learning"},
		},
	}
}

// BlogFetcher pulls company research blogs, via RSS where one exists and by
// scraping the listing page where it does not.
type BlogFetcher struct {
	client  *http.Client
	parser  *gofeed.Parser
	logger  *zap.Logger
	sources []blogSource
}

func NewBlogFetcher(client *http.Client, logger *zap.Logger) *BlogFetcher {
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = browserUserAgent
	return &BlogFetcher{
		client:  client,
		parser:  parser,
		logger:  logger,
		sources: defaultBlogSources(),
	}
}

func (f *BlogFetcher) Name() string { return "blogs" }

func (f *BlogFetcher) Fetch(ctx context.Context, maxResults int) ([]store.Article, error) {
	budget := maxResults / len(f.sources)
	if budget < 1 {
		budget = 1
	}

	results := make([][]store.Article, len(f.sources))
	var g errgroup.Group
	for i, src := range f.sources {
		g.Go(func() error {
			articles, err := f.fetchSource(ctx, src, budget)
			if err != nil {
				f.logger.Warn("blog fetch failed",
					zap.String("site", src.site),
					zap.Error(err))
				return nil
			}
			results[i] = articles
			return nil
		})
	}
	_ = g.Wait()

	var all []store.Article
	for _, articles := range results {
		all = append(all, articles...)
	}
	return all, nil
}

func (f *BlogFetcher) fetchSource(ctx context.Context, src blogSource, budget int) ([]store.Article, error) {
	if src.feedURL != "" {
		return f.fetchFeed(ctx, src, budget)
	}
	return f.scrapePage(ctx, src, budget)
}

func (f *BlogFetcher) fetchFeed(ctx context.Context, src blogSource, budget int) ([]store.Article, error) {
	feed, err := f.parser.ParseURLWithContext(src.feedURL, ctx)
	if err != nil {
		return nil, err
	}

	items := feed.Items
	if len(items) > budget {
		items = items[:budget]
	}

	articles := make([]store.Article, 0, len(items))
	for _, item := range items {
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		content := item.Content
		if content == "" {
			content = item.Description
		}
		sourceID := item.GUID
		if sourceID == "" {
			sourceID = item.Link
		}

		articles = append(articles, store.Article{
			Source:      "blog",
			SourceID:    "blog:" + src.site + ":" + sourceID,
			Title:       item.Title,
			Authors:     []string{src.name},
			Abstract:    truncate(htmlToText(content), 500),
			URL:         item.Link,
			Categories:  src.categories,
			PublishedAt: published,
		})
	}
	return articles, nil
}

func (f *BlogFetcher) scrapePage(ctx context.Context, src blogSource, budget int) ([]store.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page request failed with status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	origin := ""
	if base, err := url.Parse(src.pageURL); err == nil {
		origin = base.Scheme + "://" + base.Host
	}

	var articles []store.Article
	doc.Find("article, .blog-post, .post-item").EachWithBreak(func(i int, post *goquery.Selection) bool {
		if i >= maxScrapedPosts || len(articles) >= budget {
			return false
		}

		title := strings.Join(strings.Fields(post.Find("h1, h2, h3").First().Text()), " ")
		if title == "" {
			return true
		}
		href, ok := post.Find("a[href]").First().Attr("href")
		if !ok || href == "" {
			return true
		}
		if strings.HasPrefix(href, "/") {
			href = origin + href
		}

		articles = append(articles, store.Article{
			Source:     "blog",
			SourceID:   "blog:" + src.site + ":" + href,
			Title:      title,
			Authors:    []string{src.name},
			Abstract:   clip(strings.TrimSpace(post.Find("p").First().Text()), 500),
			URL:        href,
			Categories: src.categories,
		})
		return true
	})
	return articles, nil
}

// htmlToText flattens an HTML fragment to whitespace-normalized text.
func htmlToText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// truncate shortens s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// clip shortens s to at most n runes without an ellipsis.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
