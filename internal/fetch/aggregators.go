package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"ainews/internal/store"
)

const aggregatorUserAgent = "AINewsTracker/1.0"

var hackerNewsSearchTerms = []string{"AI", "machine learning", "GPT"}

// AggregatorFetcher pulls discussion threads from Hacker News and the
// MachineLearning subreddit.
type AggregatorFetcher struct {
	client    *http.Client
	logger    *zap.Logger
	hnURL     string
	redditURL string
}

func NewAggregatorFetcher(client *http.Client, logger *zap.Logger) *AggregatorFetcher {
	return &AggregatorFetcher{
		client:    client,
		logger:    logger,
		hnURL:     "https://hn.algolia.com/api/v1/search",
		redditURL: "https://www.reddit.com/r/MachineLearning/hot.json",
	}
}

func (f *AggregatorFetcher) Name() string { return "aggregators" }

func (f *AggregatorFetcher) Fetch(ctx context.Context, maxResults int) ([]store.Article, error) {
	hn := f.fetchHackerNews(ctx)
	reddit, err := f.fetchReddit(ctx)
	if err != nil {
		f.logger.Warn("reddit fetch failed", zap.Error(err))
	}

	all := append(hn, reddit...)
	if len(all) == 0 && err != nil {
		return nil, err
	}
	if len(all) > maxResults {
		all = all[:maxResults]
	}
	return all, nil
}

type hackerNewsHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	CreatedAt   string `json:"created_at"`
}

func (f *AggregatorFetcher) fetchHackerNews(ctx context.Context) []store.Article {
	seen := make(map[string]struct{})
	var articles []store.Article
	for _, term := range hackerNewsSearchTerms {
		params := url.Values{}
		params.Set("query", term)
		params.Set("tags", "story")
		params.Set("hitsPerPage", "10")

		var result struct {
			Hits []hackerNewsHit `json:"hits"`
		}
		if err := f.getJSON(ctx, f.hnURL+"?"+params.Encode(), &result); err != nil {
			f.logger.Warn("hackernews fetch failed",
				zap.String("term", term),
				zap.Error(err))
			continue
		}

		for _, hit := range result.Hits {
			sourceID := "hn:" + hit.ObjectID
			if _, dup := seen[sourceID]; dup {
				continue
			}
			seen[sourceID] = struct{}{}

			link := hit.URL
			if link == "" {
				link = "https://news.ycombinator.com/item?id=" + hit.ObjectID
			}
			var published *time.Time
			if ts, err := time.Parse(time.RFC3339, hit.CreatedAt); err == nil {
				published = &ts
			}
			var authors []string
			if hit.Author != "" {
				authors = []string{hit.Author}
			}

			articles = append(articles, store.Article{
				Source:      "hackernews",
				SourceID:    sourceID,
				Title:       hit.Title,
				Authors:     authors,
				Abstract:    fmt.Sprintf("Points: %d | Comments: %d", hit.Points, hit.NumComments),
				URL:         link,
				Categories:  []string{"AI", "Tech News"},
				PublishedAt: published,
			})
		}
	}
	return articles
}

type redditPost struct {
	Data struct {
		ID            string  `json:"id"`
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Selftext      string  `json:"selftext"`
		Author        string  `json:"author"`
		Score         int     `json:"score"`
		NumComments   int     `json:"num_comments"`
		LinkFlairText string  `json:"link_flair_text"`
		CreatedUTC    float64 `json:"created_utc"`
	} `json:"data"`
}

func (f *AggregatorFetcher) fetchReddit(ctx context.Context) ([]store.Article, error) {
	var result struct {
		Data struct {
			Children []redditPost `json:"children"`
		} `json:"data"`
	}
	if err := f.getJSON(ctx, f.redditURL+"?limit=25", &result); err != nil {
		return nil, err
	}

	articles := make([]store.Article, 0, len(result.Data.Children))
	for _, child := range result.Data.Children {
		post := child.Data
		if post.ID == "" {
			continue
		}

		link := post.URL
		if strings.HasPrefix(link, "/r/") {
			link = "https://www.reddit.com" + link
		}
		categories := []string{"Machine Learning"}
		if post.LinkFlairText != "" {
			categories = append(categories, post.LinkFlairText)
		}
		abstract := clip(post.Selftext, 500)
		if abstract == "" {
			abstract = fmt.Sprintf("Score: %d | Comments: %d", post.Score, post.NumComments)
		}
		published := time.Unix(int64(post.CreatedUTC), 0).UTC()
		var authors []string
		if post.Author != "" {
			authors = []string{post.Author}
		}

		articles = append(articles, store.Article{
			Source:      "reddit",
			SourceID:    "reddit:" + post.ID,
			Title:       post.Title,
			Authors:     authors,
			Abstract:    abstract,
			Content:     post.Selftext,
			URL:         link,
			Categories:  categories,
			PublishedAt: &published,
		})
	}
	return articles, nil
}

func (f *AggregatorFetcher) getJSON(ctx context.Context, rawURL string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", aggregatorUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}
