package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const labBlogRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <title>Lab News</title>
    <link>https://lab.example.com/news</link>
    <item>
      <title>New flagship model</title>
      <link>https://lab.example.com/news/flagship</link>
      <guid>news-flagship</guid>
      <pubDate>Tue, 11 Jun 2024 09:30:00 GMT</pubDate>
      <content:encoded><![CDATA[<p>Hello <b>world</b> crew</p>]]></content:encoded>
    </item>
    <item>
      <title>Ops update</title>
      <link>https://lab.example.com/news/ops</link>
      <description>Plain description only.</description>
    </item>
    <item>
      <title>Quiet third</title>
      <link>https://lab.example.com/news/third</link>
    </item>
  </channel>
</rss>`

const researchPageHTML = `<html><body>
<article>
  <h2>  Interpretability   update </h2>
  <a href="/research/interp">Read</a>
  <p>Circuits everywhere.</p>
</article>
<article>
  <h3>External link post</h3>
  <a href="https://elsewhere.example.com/post">Read</a>
  <p>Hosted elsewhere.</p>
</article>
<article>
  <a href="/no-title">untitled</a>
</article>
<div class="blog-post">
  <h2>Styled post</h2>
  <a href="/styled">Read</a>
</div>
</body></html>`

func newBlogTestServer(t *testing.T) (*httptest.Server, *BlogFetcher) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rss.xml", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, browserUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(labBlogRSS))
	})
	mux.HandleFunc("/research", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, browserUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(researchPageHTML))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	f := NewBlogFetcher(ts.Client(), zap.NewNop())
	f.sources = []blogSource{
		{
			site:       "openai",
			name:       "OpenAI",
			feedURL:    ts.URL + "/rss.xml",
			categories: []string{"AI", "Generative AI", "LLM"},
		},
		{
			site:       "anthropic",
			name:       "Anthropic",
			pageURL:    ts.URL + "/research",
			categories: []string{"AI", "LLM", "AI Safety"},
		},
		{
			site:       "meta",
			name:       "Meta AI",
			pageURL:    ts.URL + "/missing",
			categories: []string{"AI", "Machine Learning"},
		},
	}
	return ts, f
}

func TestBlogFetcherCombinesFeedsAndScrapes(t *testing.T) {
	ts, f := newBlogTestServer(t)

	articles, err := f.Fetch(context.Background(), 12)
	require.NoError(t, err)
	// Three feed items, three scraped posts, and nothing from the source
	// whose page 404s.
	require.Len(t, articles, 6)

	feedFirst := articles[0]
	assert.Equal(t, "blog", feedFirst.Source)
	assert.Equal(t, "blog:openai:news-flagship", feedFirst.SourceID)
	assert.Equal(t, "New flagship model", feedFirst.Title)
	assert.Equal(t, []string{"OpenAI"}, feedFirst.Authors)
	assert.Equal(t, "Hello world crew", feedFirst.Abstract)
	assert.Equal(t, "https://lab.example.com/news/flagship", feedFirst.URL)
	assert.Equal(t, []string{"AI", "Generative AI", "LLM"}, feedFirst.Categories)
	require.NotNil(t, feedFirst.PublishedAt)
	assert.Equal(t, time.Date(2024, 6, 11, 9, 30, 0, 0, time.UTC), feedFirst.PublishedAt.UTC())

	feedSecond := articles[1]
	assert.Equal(t, "blog:openai:https://lab.example.com/news/ops", feedSecond.SourceID)
	assert.Equal(t, "Plain description only.", feedSecond.Abstract)
	assert.Nil(t, feedSecond.PublishedAt)

	assert.Empty(t, articles[2].Abstract)

	scraped := articles[3]
	assert.Equal(t, "blog", scraped.Source)
	assert.Equal(t, "blog:anthropic:"+ts.URL+"/research/interp", scraped.SourceID)
	assert.Equal(t, "Interpretability update", scraped.Title)
	assert.Equal(t, []string{"Anthropic"}, scraped.Authors)
	assert.Equal(t, "Circuits everywhere.", scraped.Abstract)
	assert.Equal(t, ts.URL+"/research/interp", scraped.URL)
	assert.Nil(t, scraped.PublishedAt)

	external := articles[4]
	assert.Equal(t, "https://elsewhere.example.com/post", external.URL)
	assert.Equal(t, "Hosted elsewhere.", external.Abstract)

	styled := articles[5]
	assert.Equal(t, "Styled post", styled.Title)
	assert.Equal(t, ts.URL+"/styled", styled.URL)
	assert.Empty(t, styled.Abstract)
}

func TestBlogFetcherFeedBudget(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(labBlogRSS))
	}))
	defer ts.Close()

	f := NewBlogFetcher(ts.Client(), zap.NewNop())
	f.sources = []blogSource{
		{site: "openai", name: "OpenAI", feedURL: ts.URL + "/rss.xml", categories: []string{"AI"}},
	}

	articles, err := f.Fetch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "blog:openai:news-flagship", articles[0].SourceID)
}

func TestBlogFetcherHonorsScrapeBudget(t *testing.T) {
	var page strings.Builder
	page.WriteString("<html><body>")
	for i := 0; i < 15; i++ {
		page.WriteString(`<article><h2>Post title</h2><a href="/p/`)
		page.WriteString(strings.Repeat("x", i+1))
		page.WriteString(`">Read</a></article>`)
	}
	page.WriteString("</body></html>")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page.String()))
	}))
	defer ts.Close()

	f := NewBlogFetcher(ts.Client(), zap.NewNop())
	f.sources = []blogSource{
		{site: "meta", name: "Meta AI", pageURL: ts.URL + "/blog/", categories: []string{"AI"}},
	}

	articles, err := f.Fetch(context.Background(), 100)
	require.NoError(t, err)
	// The listing page never yields more than ten posts regardless of budget.
	assert.Len(t, articles, maxScrapedPosts)
}

func TestBlogFetcherTruncatesLongFeedContent(t *testing.T) {
	long := strings.Repeat("lorem ipsum ", 100)
	rss := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>x</title>
<item><title>Long one</title><link>https://lab.example.com/long</link><description>` + long + `</description></item>
</channel></rss>`

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(rss))
	}))
	defer ts.Close()

	f := NewBlogFetcher(ts.Client(), zap.NewNop())
	f.sources = []blogSource{
		{site: "openai", name: "OpenAI", feedURL: ts.URL + "/rss.xml", categories: []string{"AI"}},
	}

	articles, err := f.Fetch(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Len(t, []rune(articles[0].Abstract), 503)
	assert.True(t, strings.HasSuffix(articles[0].Abstract, "..."))
}
