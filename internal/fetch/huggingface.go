package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"ainews/internal/store"
)

// HuggingFaceFetcher splits its budget between the blog RSS feed and the
// daily papers API.
type HuggingFaceFetcher struct {
	client    *http.Client
	parser    *gofeed.Parser
	logger    *zap.Logger
	blogURL   string
	papersURL string
}

func NewHuggingFaceFetcher(client *http.Client, logger *zap.Logger) *HuggingFaceFetcher {
	parser := gofeed.NewParser()
	parser.Client = client
	return &HuggingFaceFetcher{
		client:    client,
		parser:    parser,
		logger:    logger,
		blogURL:   "https://huggingface.co/blog/feed.xml",
		papersURL: "https://huggingface.co/api/daily_papers",
	}
}

func (f *HuggingFaceFetcher) Name() string { return "huggingface" }

func (f *HuggingFaceFetcher) Fetch(ctx context.Context, maxResults int) ([]store.Article, error) {
	half := maxResults / 2
	if half < 1 {
		half = 1
	}

	blog, blogErr := f.fetchBlog(ctx, half)
	if blogErr != nil {
		f.logger.Warn("huggingface blog fetch failed", zap.Error(blogErr))
	}
	papers, papersErr := f.fetchPapers(ctx, half)
	if papersErr != nil {
		f.logger.Warn("huggingface papers fetch failed", zap.Error(papersErr))
	}
	if blogErr != nil && papersErr != nil {
		return nil, fmt.Errorf("blog: %v; papers: %v", blogErr, papersErr)
	}
	return append(blog, papers...), nil
}

func (f *HuggingFaceFetcher) fetchBlog(ctx context.Context, limit int) ([]store.Article, error) {
	feed, err := f.parser.ParseURLWithContext(f.blogURL, ctx)
	if err != nil {
		return nil, err
	}

	items := feed.Items
	if len(items) > limit {
		items = items[:limit]
	}

	articles := make([]store.Article, 0, len(items))
	for _, item := range items {
		sourceID := item.GUID
		if sourceID == "" {
			sourceID = item.Link
		}

		var authors []string
		for _, a := range item.Authors {
			if a != nil && a.Name != "" {
				authors = append(authors, a.Name)
			}
		}

		articles = append(articles, store.Article{
			Source:      "huggingface",
			SourceID:    "hf:blog:" + sourceID,
			Title:       item.Title,
			Authors:     authors,
			Abstract:    item.Description,
			Content:     item.Content,
			URL:         item.Link,
			Categories:  []string{"AI", "Generative AI"},
			PublishedAt: item.PublishedParsed,
		})
	}
	return articles, nil
}

type dailyPaperItem struct {
	PublishedAt time.Time `json:"publishedAt"`
	Paper       struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Summary string `json:"summary"`
		Authors []struct {
			Name string `json:"name"`
		} `json:"authors"`
	} `json:"paper"`
}

func (f *HuggingFaceFetcher) fetchPapers(ctx context.Context, limit int) ([]store.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.papersURL+"?limit="+strconv.Itoa(limit), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daily papers query failed with status %d", resp.StatusCode)
	}

	var items []dailyPaperItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("parse daily papers: %w", err)
	}
	if len(items) > limit {
		items = items[:limit]
	}

	articles := make([]store.Article, 0, len(items))
	for _, item := range items {
		if item.Paper.ID == "" {
			continue
		}

		var authors []string
		for _, a := range item.Paper.Authors {
			if a.Name != "" {
				authors = append(authors, a.Name)
			}
		}

		var published *time.Time
		if !item.PublishedAt.IsZero() {
			ts := item.PublishedAt
			published = &ts
		}

		articles = append(articles, store.Article{
			Source:      "huggingface",
			SourceID:    "hf:paper:" + item.Paper.ID,
			Title:       item.Paper.Title,
			Authors:     authors,
			Abstract:    item.Paper.Summary,
			URL:         "https://huggingface.co/papers/" + item.Paper.ID,
			PDFURL:      "https://arxiv.org/pdf/" + item.Paper.ID + ".pdf",
			Categories:  []string{"AI", "Machine Learning"},
			PublishedAt: published,
		})
	}
	return articles, nil
}
