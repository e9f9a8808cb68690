package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ainews/internal/store"
)

type stubFetcher struct {
	name     string
	articles []store.Article
	err      error
	gotMax   int
}

func (s *stubFetcher) Name() string { return s.name }

func (s *stubFetcher) Fetch(_ context.Context, maxResults int) ([]store.Article, error) {
	s.gotMax = maxResults
	return s.articles, s.err
}

type stubSaver struct {
	saved  []store.Article
	result int
	err    error
}

func (s *stubSaver) SaveArticles(_ context.Context, articles []store.Article) (int, error) {
	s.saved = articles
	if s.err != nil {
		return 0, s.err
	}
	return s.result, nil
}

func stubArticle(sourceID, title string) store.Article {
	return store.Article{Source: "stub", SourceID: sourceID, Title: title}
}

func TestRefreshAllAggregatesSources(t *testing.T) {
	alpha := &stubFetcher{name: "alpha", articles: []store.Article{
		stubArticle("a-1", "Quantization tricks"),
		stubArticle("a-2", "Retrieval pipelines"),
	}}
	beta := &stubFetcher{name: "beta", articles: []store.Article{
		stubArticle("b-1", "Weather modeling"),
	}}
	saver := &stubSaver{result: 3}
	svc := NewService(saver, zap.NewNop(), alpha, beta)

	report, err := svc.RefreshAll(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 10, alpha.gotMax)
	assert.Equal(t, 10, beta.gotMax)
	assert.Equal(t, 3, report.TotalFetched)
	assert.Equal(t, 3, report.UniqueArticles)
	assert.Equal(t, 3, report.Saved)
	assert.Equal(t, SourceReport{Fetched: 2, Status: "success"}, report.Sources["alpha"])
	assert.Equal(t, SourceReport{Fetched: 1, Status: "success"}, report.Sources["beta"])
	assert.Len(t, saver.saved, 3)
}

func TestRefreshAllIsolatesFetchFailures(t *testing.T) {
	bad := &stubFetcher{name: "bad", err: errors.New("boom")}
	good := &stubFetcher{name: "good", articles: []store.Article{
		stubArticle("g-1", "Healthy source"),
	}}
	saver := &stubSaver{result: 1}
	svc := NewService(saver, zap.NewNop(), bad, good)

	report, err := svc.RefreshAll(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, SourceReport{Status: "error", Error: "boom"}, report.Sources["bad"])
	assert.Equal(t, SourceReport{Fetched: 1, Status: "success"}, report.Sources["good"])
	assert.Equal(t, 1, report.TotalFetched)
	assert.Len(t, saver.saved, 1)
}

func TestRefreshAllDeduplicatesAcrossSources(t *testing.T) {
	alpha := &stubFetcher{name: "alpha", articles: []store.Article{
		stubArticle("shared-1", "Graph partitioning"),
	}}
	beta := &stubFetcher{name: "beta", articles: []store.Article{
		stubArticle("shared-1", "Graph partitioning"),
		stubArticle("b-2", "Compiler fuzzing"),
	}}
	saver := &stubSaver{result: 2}
	svc := NewService(saver, zap.NewNop(), alpha, beta)

	report, err := svc.RefreshAll(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalFetched)
	assert.Equal(t, 2, report.UniqueArticles)
	assert.Len(t, saver.saved, 2)
}

func TestRefreshAllFillsMissingCategories(t *testing.T) {
	tagged := stubArticle("t-1", "Orbital mechanics dataset")
	tagged.Categories = []string{"Custom"}
	bare := stubArticle("t-2", "Sentiment analysis with BERT")

	saver := &stubSaver{result: 2}
	svc := NewService(saver, zap.NewNop(), &stubFetcher{
		name:     "alpha",
		articles: []store.Article{tagged, bare},
	})

	_, err := svc.RefreshAll(context.Background(), 5)
	require.NoError(t, err)

	require.Len(t, saver.saved, 2)
	assert.Equal(t, []string{"Custom"}, saver.saved[0].Categories)
	assert.Equal(t, []string{"NLP"}, saver.saved[1].Categories)
}

func TestRefreshAllDefaultBudget(t *testing.T) {
	fetcher := &stubFetcher{name: "alpha"}
	svc := NewService(&stubSaver{}, zap.NewNop(), fetcher)

	_, err := svc.RefreshAll(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultRefreshPerSource, fetcher.gotMax)
}

func TestRefreshAllSaveErrorPropagates(t *testing.T) {
	saver := &stubSaver{err: errors.New("disk full")}
	svc := NewService(saver, zap.NewNop(), &stubFetcher{
		name:     "alpha",
		articles: []store.Article{stubArticle("a-1", "One")},
	})

	_, err := svc.RefreshAll(context.Background(), 5)
	require.EqualError(t, err, "save articles: disk full")
}

func TestRefreshSource(t *testing.T) {
	alpha := &stubFetcher{name: "alpha", articles: []store.Article{
		stubArticle("a-1", "Solo run"),
	}}
	beta := &stubFetcher{name: "beta"}
	saver := &stubSaver{result: 1}
	svc := NewService(saver, zap.NewNop(), alpha, beta)

	report, err := svc.RefreshSource(context.Background(), "alpha", 0)
	require.NoError(t, err)

	assert.Equal(t, DefaultSourceRefreshMax, alpha.gotMax)
	assert.Equal(t, 0, beta.gotMax)
	assert.Equal(t, SourceRefreshReport{Source: "alpha", Fetched: 1, Unique: 1, Saved: 1}, report)
}

func TestRefreshSourceUnknown(t *testing.T) {
	svc := NewService(&stubSaver{}, zap.NewNop(), &stubFetcher{name: "alpha"})

	_, err := svc.RefreshSource(context.Background(), "gopher", 5)
	require.ErrorIs(t, err, ErrUnknownSource)
	assert.EqualError(t, err, "unknown source: gopher")
}

func TestSourcesListsFetcherNames(t *testing.T) {
	svc := NewService(&stubSaver{}, zap.NewNop(),
		&stubFetcher{name: "alpha"}, &stubFetcher{name: "beta"})
	assert.Equal(t, []string{"alpha", "beta"}, svc.Sources())
}
