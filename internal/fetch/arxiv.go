package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ainews/internal/store"
)

// Listing categories polled for new submissions.
var arxivCategories = []string{"cs.AI", "cs.LG", "cs.CL", "cs.CV", "cs.NE"}

var arxivCategoryNames = map[string]string{
	"cs.AI":   "AI",
	"cs.LG":   "Machine Learning",
	"cs.CL":   "NLP",
	"cs.CV":   "Computer Vision",
	"cs.NE":   "Neural Networks",
	"stat.ML": "Machine Learning",
}

// ArxivFetcher pulls the newest submissions across the AI listing categories,
// sorted by submission date.
type ArxivFetcher struct {
	client   *http.Client
	endpoint string
}

func NewArxivFetcher(client *http.Client) *ArxivFetcher {
	return &ArxivFetcher{client: client, endpoint: "http://export.arxiv.org/api/query"}
}

func (f *ArxivFetcher) Name() string { return "arxiv" }

type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID              string          `xml:"id"`
	Title           string          `xml:"title"`
	Summary         string          `xml:"summary"`
	Published       string          `xml:"published"`
	Authors         []arxivAuthor   `xml:"author"`
	Links           []arxivLink     `xml:"link"`
	PrimaryCategory arxivCategory   `xml:"primary_category"`
	Categories      []arxivCategory `xml:"category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

func (f *ArxivFetcher) Fetch(ctx context.Context, maxResults int) ([]store.Article, error) {
	terms := make([]string, len(arxivCategories))
	for i, c := range arxivCategories {
		terms[i] = "cat:" + c
	}
	params := url.Values{
		"search_query": {strings.Join(terms, " OR ")},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(maxResults)},
		"sortBy":       {"submittedDate"},
		"sortOrder":    {"descending"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv query failed with status %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parse arxiv feed: %w", err)
	}

	articles := make([]store.Article, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		idx := strings.Index(entry.ID, "/abs/")
		if idx < 0 {
			continue
		}
		arxivID := entry.ID[idx+len("/abs/"):]

		authors := make([]string, 0, len(entry.Authors))
		for _, a := range entry.Authors {
			authors = append(authors, a.Name)
		}

		pdfURL := fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", arxivID)
		for _, l := range entry.Links {
			if l.Title == "pdf" {
				pdfURL = l.Href
				break
			}
		}

		var published *time.Time
		if ts, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			published = &ts
		}

		articles = append(articles, store.Article{
			Source:      "arxiv",
			SourceID:    "arxiv:" + arxivID,
			Title:       strings.TrimSpace(strings.ReplaceAll(entry.Title, "\n", " ")),
			Authors:     authors,
			Abstract:    strings.TrimSpace(strings.ReplaceAll(entry.Summary, "\n", " ")),
			URL:         entry.ID,
			PDFURL:      pdfURL,
			Categories:  mapArxivCategories(entry),
			PublishedAt: published,
		})
	}
	return articles, nil
}

// mapArxivCategories translates listing categories to display names, keeping
// first-seen order and dropping repeats. Unmapped categories fall back to the
// upper-cased archive prefix.
func mapArxivCategories(entry arxivEntry) []string {
	terms := make([]string, 0, len(entry.Categories)+1)
	if entry.PrimaryCategory.Term != "" {
		terms = append(terms, entry.PrimaryCategory.Term)
	}
	for _, c := range entry.Categories {
		if c.Term != "" {
			terms = append(terms, c.Term)
		}
	}

	seen := make(map[string]struct{}, len(terms))
	names := make([]string, 0, len(terms))
	for _, term := range terms {
		name, ok := arxivCategoryNames[term]
		if !ok {
			name = strings.ToUpper(term)
			if idx := strings.Index(term, "."); idx > 0 {
				name = strings.ToUpper(term[:idx])
			}
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
