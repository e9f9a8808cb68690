package api

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"ainews/internal/fetch"
)

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	maxPerSource := queryInt(r, "max_per_source", fetch.DefaultRefreshPerSource)

	report, err := s.refresher.RefreshAll(r.Context(), maxPerSource)
	if err != nil {
		s.logger.Error("refresh all sources", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to refresh sources")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRefreshSource(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	maxResults := queryInt(r, "max_results", fetch.DefaultSourceRefreshMax)

	report, err := s.refresher.RefreshSource(r.Context(), source, maxResults)
	if errors.Is(err, fetch.ErrUnknownSource) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown source: %s", source))
		return
	}
	if err != nil {
		s.logger.Error("refresh source", zap.String("source", source), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to refresh source")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
