package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"ainews/internal/export"
	"ainews/internal/store"
	"ainews/internal/summarize"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func clampLimit(limit int) int {
	if limit < 1 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

func nonNil(articles []store.Article) []store.Article {
	if articles == nil {
		return []store.Article{}
	}
	return articles
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ListFilter{
		Source:   q.Get("source"),
		Category: q.Get("category"),
		Days:     queryInt(r, "days", 0),
		Limit:    clampLimit(queryInt(r, "limit", defaultPageLimit)),
		Offset:   queryInt(r, "offset", 0),
	}
	if raw := q.Get("bookmarked"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bookmarked must be a boolean")
			return
		}
		filter.Bookmarked = &b
	}

	articles, err := s.store.ListArticles(r.Context(), filter)
	if err != nil {
		s.logger.Error("list articles", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list articles")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"articles": nonNil(articles),
		"total":    len(articles),
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

func (s *Server) handleSearchArticles(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if utf8.RuneCountInString(q) < 2 {
		writeError(w, http.StatusBadRequest, "Query must be at least 2 characters")
		return
	}
	limit := clampLimit(queryInt(r, "limit", defaultPageLimit))

	articles, err := s.store.SearchArticles(r.Context(), q, limit)
	if err != nil {
		s.logger.Error("search articles", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"articles": nonNil(articles),
		"query":    q,
		"total":    len(articles),
	})
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	article, ok := s.lookupArticle(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleSummarizeArticle(w http.ResponseWriter, r *http.Request) {
	article, ok := s.lookupArticle(w, r)
	if !ok {
		return
	}
	if article.Summary != "" {
		writeJSON(w, http.StatusOK, map[string]any{"summary": article.Summary, "cached": true})
		return
	}

	summary, err := s.summarizer.Summarize(r.Context(), article.Title, article.Abstract, article.Content)
	if errors.Is(err, summarize.ErrNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, "Summarizer not configured")
		return
	}
	if err != nil {
		s.logger.Error("summarize article", zap.Int64("id", article.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate summary")
		return
	}

	if err := s.store.SetSummary(r.Context(), article.ID, summary); err != nil {
		s.logger.Error("cache summary", zap.Int64("id", article.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to store summary")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary, "cached": false})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CategoryCounts(r.Context())
	if err != nil {
		s.logger.Error("list categories", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}
	if counts == nil {
		counts = []store.CategoryCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": counts})
}

func (s *Server) handleExportMarkdown(w http.ResponseWriter, r *http.Request) {
	article, ok := s.lookupArticle(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("article_%d.md", article.ID)))
	_, _ = w.Write([]byte(export.Markdown(*article)))
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	article, ok := s.lookupArticle(w, r)
	if !ok {
		return
	}

	// arXiv articles carry an upstream PDF; serve that copy when reachable.
	if article.PDFURL != "" {
		data, err := export.DownloadPDF(r.Context(), s.client, article.PDFURL)
		if err == nil {
			servePDF(w, strings.ReplaceAll(article.SourceID, ":", "_")+".pdf", data)
			return
		}
		s.logger.Warn("upstream pdf download failed",
			zap.String("url", article.PDFURL),
			zap.Error(err))
	}

	data, err := export.PDF(*article)
	if err != nil {
		s.logger.Error("render pdf", zap.Int64("id", article.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate PDF")
		return
	}
	servePDF(w, fmt.Sprintf("article_%d.pdf", article.ID), data)
}

func servePDF(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(data)
}

// lookupArticle resolves the {id} path segment, writing the error response
// itself when the id is malformed or unknown.
func (s *Server) lookupArticle(w http.ResponseWriter, r *http.Request) (*store.Article, bool) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid article id")
		return nil, false
	}
	article, err := s.store.GetArticle(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Article not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get article", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load article")
		return nil, false
	}
	return article, true
}
