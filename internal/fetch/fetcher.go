// Package fetch pulls articles from the background sources (arXiv listings,
// HuggingFace, company blogs, community aggregators), runs them through
// categorization and deduplication, and hands them to the store.
package fetch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ainews/internal/enrich"
	"ainews/internal/store"
)

const (
	// DefaultRefreshPerSource bounds each fetcher during a full refresh.
	DefaultRefreshPerSource = 30
	// DefaultSourceRefreshMax bounds a single-source refresh.
	DefaultSourceRefreshMax = 50
)

// ErrUnknownSource marks a refresh request for a fetcher that is not
// registered.
var ErrUnknownSource = errors.New("unknown source")

// Fetcher pulls up to maxResults articles from one external source.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, maxResults int) ([]store.Article, error)
}

// ArticleSaver is the slice of the store the service needs.
type ArticleSaver interface {
	SaveArticles(ctx context.Context, articles []store.Article) (int, error)
}

// SourceReport describes one fetcher's part of a refresh.
type SourceReport struct {
	Fetched int    `json:"fetched"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// RefreshReport summarizes a refresh across every registered fetcher.
type RefreshReport struct {
	Sources        map[string]SourceReport `json:"sources"`
	TotalFetched   int                     `json:"total_fetched"`
	UniqueArticles int                     `json:"unique_articles"`
	Saved          int                     `json:"saved"`
}

// SourceRefreshReport summarizes a refresh of a single source.
type SourceRefreshReport struct {
	Source  string `json:"source"`
	Fetched int    `json:"fetched"`
	Unique  int    `json:"unique"`
	Saved   int    `json:"saved"`
}

// Service coordinates the registered fetchers and the ingestion pipeline:
// fetch concurrently, deduplicate across sources, categorize articles that
// arrived without categories, then save.
type Service struct {
	saver    ArticleSaver
	logger   *zap.Logger
	fetchers []Fetcher
}

func NewService(saver ArticleSaver, logger *zap.Logger, fetchers ...Fetcher) *Service {
	return &Service{saver: saver, logger: logger, fetchers: fetchers}
}

// Sources lists the registered fetcher names in registration order.
func (s *Service) Sources() []string {
	names := make([]string, 0, len(s.fetchers))
	for _, f := range s.fetchers {
		names = append(names, f.Name())
	}
	return names
}

// RefreshAll runs every fetcher concurrently. A failing fetcher is reported
// per source and never aborts the others.
func (s *Service) RefreshAll(ctx context.Context, maxPerSource int) (RefreshReport, error) {
	if maxPerSource <= 0 {
		maxPerSource = DefaultRefreshPerSource
	}

	type outcome struct {
		articles []store.Article
		err      error
	}
	outs := make([]outcome, len(s.fetchers))

	var g errgroup.Group
	for i, f := range s.fetchers {
		g.Go(func() error {
			outs[i].articles, outs[i].err = f.Fetch(ctx, maxPerSource)
			return nil
		})
	}
	_ = g.Wait()

	report := RefreshReport{Sources: make(map[string]SourceReport, len(s.fetchers))}
	var all []store.Article
	for i, f := range s.fetchers {
		if outs[i].err != nil {
			s.logger.Warn("source fetch failed",
				zap.String("source", f.Name()),
				zap.Error(outs[i].err))
			report.Sources[f.Name()] = SourceReport{Status: "error", Error: outs[i].err.Error()}
			continue
		}
		report.Sources[f.Name()] = SourceReport{Fetched: len(outs[i].articles), Status: "success"}
		report.TotalFetched += len(outs[i].articles)
		all = append(all, outs[i].articles...)
	}

	unique := s.prepare(all)
	report.UniqueArticles = len(unique)

	saved, err := s.saver.SaveArticles(ctx, unique)
	if err != nil {
		return report, fmt.Errorf("save articles: %w", err)
	}
	report.Saved = saved

	s.logger.Info("refresh complete",
		zap.Int("total_fetched", report.TotalFetched),
		zap.Int("unique", report.UniqueArticles),
		zap.Int("saved", report.Saved))
	return report, nil
}

// RefreshSource runs one fetcher by name.
func (s *Service) RefreshSource(ctx context.Context, source string, maxResults int) (SourceRefreshReport, error) {
	if maxResults <= 0 {
		maxResults = DefaultSourceRefreshMax
	}

	var fetcher Fetcher
	for _, f := range s.fetchers {
		if f.Name() == source {
			fetcher = f
			break
		}
	}
	if fetcher == nil {
		return SourceRefreshReport{}, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}

	articles, err := fetcher.Fetch(ctx, maxResults)
	if err != nil {
		return SourceRefreshReport{}, fmt.Errorf("fetch %s: %w", source, err)
	}

	unique := s.prepare(articles)
	saved, err := s.saver.SaveArticles(ctx, unique)
	if err != nil {
		return SourceRefreshReport{}, fmt.Errorf("save articles: %w", err)
	}

	return SourceRefreshReport{
		Source:  source,
		Fetched: len(articles),
		Unique:  len(unique),
		Saved:   saved,
	}, nil
}

// prepare deduplicates a batch and fills in categories for articles that
// arrived without any.
func (s *Service) prepare(articles []store.Article) []store.Article {
	unique := enrich.Deduplicate(articles)
	for i := range unique {
		if len(unique[i].Categories) == 0 {
			unique[i].Categories = enrich.Categorize(unique[i].Title, unique[i].Abstract)
		}
	}
	return unique
}
