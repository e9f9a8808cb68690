package api

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

type sourceStatus struct {
	Name           string `json:"name"`
	ResponseKey    string `json:"response_key"`
	Description    string `json:"description"`
	Availability   string `json:"availability"`
	RequiresAPIKey bool   `json:"requires_api_key"`
}

func agentQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if utf8.RuneCountInString(q) < 2 {
		writeError(w, http.StatusBadRequest, "Query must be at least 2 characters")
		return "", false
	}
	return q, true
}

func (s *Server) handleAgentSearch(w http.ResponseWriter, r *http.Request) {
	q, ok := agentQuery(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.researcher.Research(r.Context(), q))
}

func (s *Server) handleAgentSearchSource(w http.ResponseWriter, r *http.Request) {
	q, ok := agentQuery(w, r)
	if !ok {
		return
	}
	source := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("source")))
	if !s.knownSource(source) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown source: %s", source))
		return
	}

	outcome, err := s.researcher.SearchSource(r.Context(), q, source)
	if err != nil {
		s.logger.Error("source search", zap.String("source", source), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleAgentSources(w http.ResponseWriter, _ *http.Request) {
	infos := s.researcher.Tools()
	sources := make([]sourceStatus, 0, len(infos))
	for _, info := range infos {
		sources = append(sources, sourceStatus{
			Name:           info.Name,
			ResponseKey:    info.Key,
			Description:    info.Description,
			Availability:   info.Capability.String(),
			RequiresAPIKey: info.RequiresKey,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

// knownSource checks a response key against the registered tools before the
// query reaches the agent.
func (s *Server) knownSource(source string) bool {
	for _, info := range s.researcher.Tools() {
		if info.Key == source {
			return true
		}
	}
	return false
}
