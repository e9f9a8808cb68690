// Package api serves the REST interface over net/http.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"ainews/internal/agent"
	"ainews/internal/fetch"
	"ainews/internal/store"
)

const apiVersion = "1.0.0"

// ArticleStore is the slice of the article database the handlers use.
type ArticleStore interface {
	ListArticles(ctx context.Context, f store.ListFilter) ([]store.Article, error)
	GetArticle(ctx context.Context, id int64) (*store.Article, error)
	SearchArticles(ctx context.Context, q string, limit int) ([]store.Article, error)
	SetSummary(ctx context.Context, id int64, summary string) error
	Bookmark(ctx context.Context, id int64) (*store.Article, bool, error)
	Unbookmark(ctx context.Context, id int64) (*store.Article, bool, error)
	ListBookmarks(ctx context.Context) ([]store.Article, error)
	CategoryCounts(ctx context.Context) ([]store.CategoryCount, error)
}

// Refresher triggers ingestion runs.
type Refresher interface {
	RefreshAll(ctx context.Context, maxPerSource int) (fetch.RefreshReport, error)
	RefreshSource(ctx context.Context, source string, maxResults int) (fetch.SourceRefreshReport, error)
}

// Summarizer generates article summaries on demand.
type Summarizer interface {
	Summarize(ctx context.Context, title, abstract, content string) (string, error)
}

// Researcher runs the research agent.
type Researcher interface {
	Research(ctx context.Context, query string) agent.Outcome
	SearchSource(ctx context.Context, query, source string) (agent.SourceOutcome, error)
	Tools() []agent.ToolInfo
}

type Server struct {
	store       ArticleStore
	refresher   Refresher
	summarizer  Summarizer
	researcher  Researcher
	client      *http.Client
	logger      *zap.Logger
	corsOrigins []string
}

type Options struct {
	Store      ArticleStore
	Refresher  Refresher
	Summarizer Summarizer
	Researcher Researcher

	// Client fetches upstream PDFs; a default with a 30s timeout is used
	// when nil.
	Client      *http.Client
	Logger      *zap.Logger
	CORSOrigins []string
}

func NewServer(opts Options) *Server {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:       opts.Store,
		refresher:   opts.Refresher,
		summarizer:  opts.Summarizer,
		researcher:  opts.Researcher,
		client:      client,
		logger:      logger,
		corsOrigins: opts.CORSOrigins,
	}
}

// Handler builds the route table with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /api/articles", s.handleListArticles)
	mux.HandleFunc("GET /api/articles/search", s.handleSearchArticles)
	mux.HandleFunc("GET /api/articles/categories/list", s.handleListCategories)
	mux.HandleFunc("GET /api/articles/{id}", s.handleGetArticle)
	mux.HandleFunc("POST /api/articles/{id}/summarize", s.handleSummarizeArticle)
	mux.HandleFunc("GET /api/articles/{id}/markdown", s.handleExportMarkdown)
	mux.HandleFunc("GET /api/articles/{id}/pdf", s.handleExportPDF)

	mux.HandleFunc("GET /api/bookmarks", s.handleListBookmarks)
	mux.HandleFunc("POST /api/bookmarks/{id}", s.handleAddBookmark)
	mux.HandleFunc("DELETE /api/bookmarks/{id}", s.handleRemoveBookmark)

	mux.HandleFunc("POST /api/sources/refresh", s.handleRefreshAll)
	mux.HandleFunc("POST /api/sources/refresh/{source}", s.handleRefreshSource)

	mux.HandleFunc("GET /api/agents/search", s.handleAgentSearch)
	mux.HandleFunc("GET /api/agents/search/source", s.handleAgentSearchSource)
	mux.HandleFunc("GET /api/agents/sources", s.handleAgentSources)

	return s.withCORS(s.withLogging(mux))
}

// ListenAndServe blocks until ctx is canceled, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("http server listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "AI News Tracker API",
		"version": apiVersion,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
