package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ainews/internal/store"
	"ainews/internal/summarize"
)

func sampleArticle(id int64) *store.Article {
	published := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	return &store.Article{
		ID:          id,
		Source:      "arxiv",
		SourceID:    "arxiv:2406.01234v1",
		Title:       "Sparse attention for long documents",
		Authors:     []string{"Ada One"},
		Abstract:    "We study sparse attention.",
		URL:         "http://arxiv.org/abs/2406.01234v1",
		Categories:  []string{"NLP"},
		PublishedAt: &published,
	}
}

func TestListArticlesPassesFilters(t *testing.T) {
	var got store.ListFilter
	st := &fakeStore{listFn: func(f store.ListFilter) ([]store.Article, error) {
		got = f
		return []store.Article{*sampleArticle(1)}, nil
	}}
	s := NewServer(Options{Store: st})

	rec := doRequest(t, s, http.MethodGet,
		"/api/articles?source=arxiv&category=NLP&days=7&bookmarked=true&limit=500&offset=10")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "arxiv", got.Source)
	assert.Equal(t, "NLP", got.Category)
	assert.Equal(t, 7, got.Days)
	require.NotNil(t, got.Bookmarked)
	assert.True(t, *got.Bookmarked)
	assert.Equal(t, 200, got.Limit)
	assert.Equal(t, 10, got.Offset)

	body := decodeJSON(t, rec)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(200), body["limit"])
	assert.Equal(t, float64(10), body["offset"])
}

func TestListArticlesEmptyResultIsArray(t *testing.T) {
	st := &fakeStore{listFn: func(store.ListFilter) ([]store.Article, error) {
		return nil, nil
	}}
	s := NewServer(Options{Store: st})

	rec := doRequest(t, s, http.MethodGet, "/api/articles")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"articles":[]`)
}

func TestListArticlesRejectsBadBookmarked(t *testing.T) {
	s := NewServer(Options{Store: &fakeStore{}})

	rec := doRequest(t, s, http.MethodGet, "/api/articles?bookmarked=banana")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "bookmarked must be a boolean")
}

func TestSearchArticlesValidatesQueryLength(t *testing.T) {
	s := NewServer(Options{Store: &fakeStore{}})

	rec := doRequest(t, s, http.MethodGet, "/api/articles/search?q=a")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least 2 characters")
}

func TestSearchArticles(t *testing.T) {
	var gotQ string
	var gotLimit int
	st := &fakeStore{searchFn: func(q string, limit int) ([]store.Article, error) {
		gotQ, gotLimit = q, limit
		return []store.Article{*sampleArticle(1), *sampleArticle(2)}, nil
	}}
	s := NewServer(Options{Store: st})

	rec := doRequest(t, s, http.MethodGet, "/api/articles/search?q=sparse+attention&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "sparse attention", gotQ)
	assert.Equal(t, 5, gotLimit)
	body := decodeJSON(t, rec)
	assert.Equal(t, "sparse attention", body["query"])
	assert.Equal(t, float64(2), body["total"])
}

func TestGetArticle(t *testing.T) {
	st := &fakeStore{getFn: func(id int64) (*store.Article, error) {
		require.Equal(t, int64(42), id)
		return sampleArticle(42), nil
	}}
	s := NewServer(Options{Store: st})

	rec := doRequest(t, s, http.MethodGet, "/api/articles/42")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, float64(42), body["id"])
	assert.Equal(t, "Sparse attention for long documents", body["title"])
}

func TestGetArticleInvalidID(t *testing.T) {
	s := NewServer(Options{Store: &fakeStore{}})

	rec := doRequest(t, s, http.MethodGet, "/api/articles/abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid article id")
}

func TestSummarizeReturnsCachedSummary(t *testing.T) {
	article := sampleArticle(7)
	article.Summary = "Cached take."
	st := &fakeStore{getFn: func(int64) (*store.Article, error) { return article, nil }}
	sum := &fakeSummarizer{fn: func(string, string, string) (string, error) {
		t.Fatal("summarizer called for a cached summary")
		return "", nil
	}}
	s := NewServer(Options{Store: st, Summarizer: sum})

	rec := doRequest(t, s, http.MethodPost, "/api/articles/7/summarize")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"summary": "Cached take.", "cached": true}`, rec.Body.String())
}

func TestSummarizeGeneratesAndCaches(t *testing.T) {
	var cachedID int64
	var cachedSummary string
	st := &fakeStore{
		getFn: func(int64) (*store.Article, error) { return sampleArticle(7), nil },
		setSummaryFn: func(id int64, summary string) error {
			cachedID, cachedSummary = id, summary
			return nil
		},
	}
	sum := &fakeSummarizer{fn: func(title, abstract, _ string) (string, error) {
		assert.Equal(t, "Sparse attention for long documents", title)
		assert.Equal(t, "We study sparse attention.", abstract)
		return "Fresh summary.", nil
	}}
	s := NewServer(Options{Store: st, Summarizer: sum})

	rec := doRequest(t, s, http.MethodPost, "/api/articles/7/summarize")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"summary": "Fresh summary.", "cached": false}`, rec.Body.String())
	assert.Equal(t, int64(7), cachedID)
	assert.Equal(t, "Fresh summary.", cachedSummary)
}

func TestSummarizeNotConfigured(t *testing.T) {
	st := &fakeStore{getFn: func(int64) (*store.Article, error) { return sampleArticle(7), nil }}
	sum := &fakeSummarizer{fn: func(string, string, string) (string, error) {
		return "", summarize.ErrNotConfigured
	}}
	s := NewServer(Options{Store: st, Summarizer: sum})

	rec := doRequest(t, s, http.MethodPost, "/api/articles/7/summarize")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "Summarizer not configured")
}

func TestListCategories(t *testing.T) {
	st := &fakeStore{categoriesFn: func() ([]store.CategoryCount, error) {
		return []store.CategoryCount{{Name: "NLP", Count: 12}, {Name: "LLM", Count: 4}}, nil
	}}
	s := NewServer(Options{Store: st})

	rec := doRequest(t, s, http.MethodGet, "/api/articles/categories/list")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"categories": [{"name": "NLP", "count": 12}, {"name": "LLM", "count": 4}]}`,
		rec.Body.String())
}

func TestExportMarkdownAttachment(t *testing.T) {
	st := &fakeStore{getFn: func(int64) (*store.Article, error) { return sampleArticle(7), nil }}
	s := NewServer(Options{Store: st})

	rec := doRequest(t, s, http.MethodGet, "/api/articles/7/markdown")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="article_7.md"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "# Sparse attention for long documents"))
}

func TestExportPDFServesUpstreamCopy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.4 upstream"))
	}))
	defer upstream.Close()

	article := sampleArticle(7)
	article.PDFURL = upstream.URL
	st := &fakeStore{getFn: func(int64) (*store.Article, error) { return article, nil }}
	s := NewServer(Options{Store: st, Client: upstream.Client()})

	rec := doRequest(t, s, http.MethodGet, "/api/articles/7/pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="arxiv_2406.01234v1.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4 upstream", rec.Body.String())
}

func TestExportPDFFallsBackToGenerated(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	article := sampleArticle(7)
	article.PDFURL = upstream.URL
	st := &fakeStore{getFn: func(int64) (*store.Article, error) { return article, nil }}
	s := NewServer(Options{Store: st, Client: upstream.Client()})

	rec := doRequest(t, s, http.MethodGet, "/api/articles/7/pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="article_7.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
}

func TestStoreErrorsBecome500(t *testing.T) {
	st := &fakeStore{listFn: func(store.ListFilter) ([]store.Article, error) {
		return nil, errors.New("db locked")
	}}
	s := NewServer(Options{Store: st})

	rec := doRequest(t, s, http.MethodGet, "/api/articles")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to list articles")
}
