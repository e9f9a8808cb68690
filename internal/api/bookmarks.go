package api

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"ainews/internal/store"
)

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	articles, err := s.store.ListBookmarks(r.Context())
	if err != nil {
		s.logger.Error("list bookmarks", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list bookmarks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bookmarks": nonNil(articles),
		"total":     len(articles),
	})
}

func (s *Server) handleAddBookmark(w http.ResponseWriter, r *http.Request) {
	s.toggleBookmark(w, r, s.store.Bookmark, "Article bookmarked", "Article already bookmarked")
}

func (s *Server) handleRemoveBookmark(w http.ResponseWriter, r *http.Request) {
	s.toggleBookmark(w, r, s.store.Unbookmark, "Bookmark removed", "Article not bookmarked")
}

func (s *Server) toggleBookmark(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, id int64) (*store.Article, bool, error),
	changedMsg, unchangedMsg string,
) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid article id")
		return
	}

	article, changed, err := op(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Article not found")
		return
	}
	if err != nil {
		s.logger.Error("toggle bookmark", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to update bookmark")
		return
	}

	message := changedMsg
	if !changed {
		message = unchangedMsg
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": message, "article": article})
}
