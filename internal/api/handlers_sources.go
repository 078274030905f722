package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/binz0209/vihis/internal/models"
	"github.com/binz0209/vihis/internal/store"
)

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	src, ok := s.loadSource(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, src)
}

// handleSourceFragments lists every fragment of a source in chunk order.
func (s *Server) handleSourceFragments(w http.ResponseWriter, r *http.Request) {
	src, ok := s.loadSource(w, r)
	if !ok {
		return
	}
	frags, err := s.deps.Sources.FindBySource(r.Context(), src.ID)
	if err != nil {
		s.log.Error("list fragments failed", "source_id", src.ID, "error", err)
		jsonError(w, "failed to list fragments", http.StatusInternalServerError)
		return
	}
	if frags == nil {
		frags = []models.Fragment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source":    src,
		"fragments": frags,
	})
}

func (s *Server) loadSource(w http.ResponseWriter, r *http.Request) (*models.Source, bool) {
	id := chi.URLParam(r, "sourceID")
	src, err := s.deps.Sources.GetSource(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, "source not found", http.StatusNotFound)
		return nil, false
	case err != nil:
		s.log.Error("get source failed", "source_id", id, "error", err)
		jsonError(w, "failed to load source", http.StatusInternalServerError)
		return nil, false
	}
	return src, true
}
