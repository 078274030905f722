package api

import (
	"net/http"
)

func (s *Server) handleEmbedStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.EmbedStats == nil {
		jsonError(w, "embedding stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provider": s.cfg.EmbedProvider,
		"model":    s.cfg.EmbedModel,
		"stats":    s.deps.EmbedStats.Snapshot(),
	})
}
