package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"ainews/internal/config"
)

const anthropicUserAgent = "AI-News-Tracker/1.0"

// truncate trims s to at most n runes, marking the cut with an ellipsis, so
// long abstracts and descriptions do not blow up the LLM context.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (r *Registry) getJSON(ctx context.Context, rawURL string, header http.Header, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func (r *Registry) postJSON(ctx context.Context, rawURL string, body, target any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

type arxivToolFeed struct {
	Entries []struct {
		ID        string `xml:"id"`
		Title     string `xml:"title"`
		Summary   string `xml:"summary"`
		Published string `xml:"published"`
		Authors   []struct {
			Name string `xml:"name"`
		} `xml:"author"`
		Links []struct {
			Href  string `xml:"href,attr"`
			Title string `xml:"title,attr"`
		} `xml:"link"`
	} `xml:"entry"`
}

func (r *Registry) searchArxiv(ctx context.Context, _ *config.Config, query string, maxResults int) ToolResult {
	params := url.Values{
		"search_query": {"all:" + query},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(maxResults)},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoints.arxiv+"?"+params.Encode(), nil)
	if err != nil {
		return errorRecords("arXiv search failed: %v", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return errorRecords("arXiv search failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errorRecords("arXiv search failed: request failed with status %d", resp.StatusCode)
	}

	var feed arxivToolFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return errorRecords("arXiv search failed: %v", err)
	}

	records := make([]Record, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		authors := make([]string, 0, 3)
		for _, a := range entry.Authors {
			if len(authors) == 3 {
				break
			}
			authors = append(authors, a.Name)
		}

		pdfURL := strings.Replace(entry.ID, "/abs/", "/pdf/", 1)
		for _, l := range entry.Links {
			if l.Title == "pdf" {
				pdfURL = l.Href
				break
			}
		}

		published := ""
		if ts, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			published = ts.Format("2006-01-02")
		}

		records = append(records, Record{
			"title":     collapseSpace(entry.Title),
			"authors":   authors,
			"abstract":  truncate(collapseSpace(entry.Summary), 500),
			"url":       entry.ID,
			"pdf_url":   pdfURL,
			"published": published,
		})
	}
	return listResult(records)
}

func (r *Registry) searchWikipedia(ctx context.Context, _ *config.Config, query string, maxResults int) ToolResult {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(maxResults)},
		"format":   {"json"},
	}
	var search struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := r.getJSON(ctx, r.endpoints.wikipediaAPI+"?"+params.Encode(), nil, &search); err != nil {
		return errorRecords("Wikipedia search failed: %v", err)
	}

	records := make([]Record, 0, len(search.Query.Search))
	for _, hit := range search.Query.Search {
		var summary struct {
			Type        string `json:"type"`
			Title       string `json:"title"`
			Extract     string `json:"extract"`
			ContentURLs struct {
				Desktop struct {
					Page string `json:"page"`
				} `json:"desktop"`
			} `json:"content_urls"`
		}
		page := url.PathEscape(strings.ReplaceAll(hit.Title, " ", "_"))
		if err := r.getJSON(ctx, r.endpoints.wikipediaSummary+"/"+page, nil, &summary); err != nil {
			continue
		}
		if summary.Type == "disambiguation" {
			continue
		}
		records = append(records, Record{
			"title":   summary.Title,
			"summary": summary.Extract,
			"url":     summary.ContentURLs.Desktop.Page,
		})
	}
	return listResult(records)
}

func (r *Registry) searchTavily(ctx context.Context, cfg *config.Config, query string, maxResults int) ToolResult {
	if cfg.Tools.TavilyAPIKey == "" {
		return errorObject("Tavily API key not configured")
	}

	body := map[string]any{
		"api_key":        cfg.Tools.TavilyAPIKey,
		"query":          query,
		"search_depth":   "basic",
		"max_results":    maxResults,
		"include_answer": true,
	}
	var result struct {
		Answer  string `json:"answer"`
		Results []struct {
			Title   string `json:"title"`
			Content string `json:"content"`
			URL     string `json:"url"`
		} `json:"results"`
	}
	if err := r.postJSON(ctx, r.endpoints.tavily, body, &result); err != nil {
		return errorObject("Tavily search failed: %v", err)
	}

	records := make([]Record, 0, len(result.Results))
	for _, hit := range result.Results {
		records = append(records, Record{
			"title":   hit.Title,
			"content": truncate(hit.Content, 300),
			"url":     hit.URL,
		})
	}
	return objectResult(Record{"answer": result.Answer, "results": records})
}

func (r *Registry) searchYouTube(ctx context.Context, cfg *config.Config, query string, maxResults int) ToolResult {
	if cfg.Tools.YouTubeAPIKey == "" {
		return errorRecords("YouTube API key not configured")
	}

	params := url.Values{
		"part":              {"snippet"},
		"q":                 {query},
		"type":              {"video"},
		"maxResults":        {strconv.Itoa(maxResults)},
		"relevanceLanguage": {"en"},
		"key":               {cfg.Tools.YouTubeAPIKey},
	}
	var result struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
			Snippet struct {
				Title       string `json:"title"`
				Channel     string `json:"channelTitle"`
				Description string `json:"description"`
				PublishedAt string `json:"publishedAt"`
				Thumbnails  struct {
					Medium struct {
						URL string `json:"url"`
					} `json:"medium"`
				} `json:"thumbnails"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := r.getJSON(ctx, r.endpoints.youtube+"?"+params.Encode(), nil, &result); err != nil {
		return errorRecords("YouTube search failed: %v", err)
	}

	records := make([]Record, 0, len(result.Items))
	for _, item := range result.Items {
		if item.ID.VideoID == "" {
			continue
		}
		records = append(records, Record{
			"title":         item.Snippet.Title,
			"channel":       item.Snippet.Channel,
			"description":   truncate(item.Snippet.Description, 200),
			"url":           "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			"thumbnail_url": item.Snippet.Thumbnails.Medium.URL,
			"published_at":  item.Snippet.PublishedAt,
		})
	}
	return listResult(records)
}

func (r *Registry) searchSemanticScholar(ctx context.Context, _ *config.Config, query string, maxResults int) ToolResult {
	params := url.Values{
		"query":  {query},
		"limit":  {strconv.Itoa(maxResults)},
		"fields": {"paperId,title,year,citationCount,url,abstract,authors"},
	}
	var result struct {
		Data []struct {
			PaperID       string `json:"paperId"`
			Title         string `json:"title"`
			Year          int    `json:"year"`
			CitationCount int    `json:"citationCount"`
			URL           string `json:"url"`
			Abstract      string `json:"abstract"`
			Authors       []struct {
				Name string `json:"name"`
			} `json:"authors"`
		} `json:"data"`
	}
	if err := r.getJSON(ctx, r.endpoints.semanticScholar+"?"+params.Encode(), nil, &result); err != nil {
		return errorRecords("Semantic Scholar search failed: %v", err)
	}

	records := make([]Record, 0, len(result.Data))
	for _, paper := range result.Data {
		authors := make([]string, 0, 3)
		for _, a := range paper.Authors {
			if len(authors) == 3 {
				break
			}
			authors = append(authors, a.Name)
		}
		paperURL := paper.URL
		if paperURL == "" {
			paperURL = "https://www.semanticscholar.org/paper/" + paper.PaperID
		}
		records = append(records, Record{
			"title":          paper.Title,
			"authors":        authors,
			"abstract":       truncate(paper.Abstract, 500),
			"url":            paperURL,
			"year":           paper.Year,
			"citation_count": paper.CitationCount,
		})
	}
	return listResult(records)
}

func (r *Registry) searchHuggingFace(ctx context.Context, _ *config.Config, query string, maxResults int) ToolResult {
	params := url.Values{
		"search":    {query},
		"sort":      {"downloads"},
		"direction": {"-1"},
		"limit":     {strconv.Itoa(maxResults)},
	}
	var models []struct {
		ID        string   `json:"id"`
		Downloads int64    `json:"downloads"`
		Likes     int      `json:"likes"`
		Tags      []string `json:"tags"`
	}
	if err := r.getJSON(ctx, r.endpoints.huggingface+"?"+params.Encode(), nil, &models); err != nil {
		return errorRecords("HuggingFace search failed: %v", err)
	}

	records := make([]Record, 0, len(models))
	for _, model := range models {
		author := ""
		if idx := strings.Index(model.ID, "/"); idx > 0 {
			author = model.ID[:idx]
		}
		tags := model.Tags
		if len(tags) > 5 {
			tags = tags[:5]
		}
		records = append(records, Record{
			"model_id":  model.ID,
			"author":    author,
			"downloads": model.Downloads,
			"likes":     model.Likes,
			"tags":      tags,
			"url":       "https://huggingface.co/" + model.ID,
		})
	}
	return listResult(records)
}

func (r *Registry) searchGitHub(ctx context.Context, cfg *config.Config, query string, maxResults int) ToolResult {
	params := url.Values{
		"q":        {query + " topic:machine-learning"},
		"sort":     {"stars"},
		"per_page": {strconv.Itoa(maxResults)},
	}
	header := http.Header{"Accept": {"application/vnd.github.v3+json"}}
	if cfg.Tools.GitHubToken != "" {
		header.Set("Authorization", "token "+cfg.Tools.GitHubToken)
	}

	var result struct {
		Items []struct {
			Name        string   `json:"name"`
			FullName    string   `json:"full_name"`
			Description string   `json:"description"`
			HTMLURL     string   `json:"html_url"`
			Stars       int      `json:"stargazers_count"`
			Language    string   `json:"language"`
			Topics      []string `json:"topics"`
		} `json:"items"`
	}
	if err := r.getJSON(ctx, r.endpoints.github+"?"+params.Encode(), header, &result); err != nil {
		return errorRecords("GitHub search failed: %v", err)
	}

	records := make([]Record, 0, len(result.Items))
	for _, repo := range result.Items {
		topics := repo.Topics
		if len(topics) > 5 {
			topics = topics[:5]
		}
		records = append(records, Record{
			"name":        repo.Name,
			"full_name":   repo.FullName,
			"description": truncate(repo.Description, 300),
			"url":         repo.HTMLURL,
			"stars":       repo.Stars,
			"language":    repo.Language,
			"topics":      topics,
		})
	}
	return listResult(records)
}

func (r *Registry) searchPapersWithCode(ctx context.Context, _ *config.Config, query string, maxResults int) ToolResult {
	var papers []struct {
		Paper struct {
			ID      string `json:"id"`
			Title   string `json:"title"`
			Summary string `json:"summary"`
		} `json:"paper"`
	}
	if err := r.getJSON(ctx, r.endpoints.papersWithCode+"?limit=50", nil, &papers); err != nil {
		return errorRecords("Papers With Code search failed: %v", err)
	}

	terms := strings.Fields(strings.ToLower(query))
	records := make([]Record, 0, maxResults)
	for _, item := range papers {
		if len(records) == maxResults {
			break
		}
		text := strings.ToLower(item.Paper.Title + " " + item.Paper.Summary)
		if len(terms) > 0 && !anyTermMatches(text, terms) {
			continue
		}
		records = append(records, Record{
			"title":          item.Paper.Title,
			"abstract":       truncate(item.Paper.Summary, 500),
			"url":            "https://huggingface.co/papers/" + item.Paper.ID,
			"repository_url": nil,
		})
	}
	return listResult(records)
}

func anyTermMatches(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func allTermsMatch(text string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(text, term) {
			return false
		}
	}
	return true
}

func (r *Registry) searchAnthropic(ctx context.Context, _ *config.Config, query string, maxResults int) ToolResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoints.anthropic, nil)
	if err != nil {
		return errorRecords("Anthropic research search failed: %v", err)
	}
	req.Header.Set("User-Agent", anthropicUserAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return errorRecords("Anthropic research search failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errorRecords("Anthropic research search failed: request failed with status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return errorRecords("Anthropic research search failed: %v", err)
	}

	origin := ""
	if base, err := url.Parse(r.endpoints.anthropic); err == nil {
		origin = base.Scheme + "://" + base.Host
	}

	terms := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{})
	var records []Record
	for _, anchor := range findElements(doc, "a") {
		href := attrValue(anchor, "href")
		if href == "" {
			continue
		}

		heading := findFirstElement(anchor, "h2", "h3", "h4", "span")
		if heading == nil {
			continue
		}
		title := collapseSpace(nodeText(heading))
		if utf8.RuneCountInString(title) < 10 {
			continue
		}

		description := ""
		if p := findFirstElement(anchor, "p"); p != nil {
			description = collapseSpace(nodeText(p))
		}

		if len(terms) > 0 && !allTermsMatch(strings.ToLower(title+" "+description), terms) {
			continue
		}

		if strings.HasPrefix(href, "/") {
			href = origin + href
		}
		if _, dup := seen[href]; dup {
			continue
		}
		seen[href] = struct{}{}

		records = append(records, Record{
			"title":       title,
			"description": truncate(description, 300),
			"url":         href,
		})
	}

	if len(records) > maxResults {
		records = records[:maxResults]
	}
	return listResult(records)
}

func findElements(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag {
			out = append(out, node)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return out
}

// findFirstElement returns the first descendant of n, in document order,
// whose tag is one of tags. n itself is not considered.
func findFirstElement(n *html.Node, tags ...string) *html.Node {
	var walk func(*html.Node) *html.Node
	walk = func(node *html.Node) *html.Node {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.ElementNode {
				for _, tag := range tags {
					if child.Data == tag {
						return child
					}
				}
			}
			if found := walk(child); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(n)
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
