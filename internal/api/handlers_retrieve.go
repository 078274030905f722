package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/binz0209/vihis/internal/retrieve"
)

type retrieveRequest struct {
	Question string `json:"question"`
	K        *int   `json:"k,omitempty"`
	Window   *int   `json:"window,omitempty"`
}

type retrieveResponse struct {
	Mode      retrieve.Mode      `json:"mode"`
	Cached    bool               `json:"cached"`
	Fragments []retrieve.Labeled `json:"fragments"`
}

const maxRetrieveK = 50

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		jsonError(w, "question is required", http.StatusBadRequest)
		return
	}

	k, window := 0, -1
	if req.K != nil {
		if *req.K <= 0 || *req.K > maxRetrieveK {
			jsonError(w, "k must be between 1 and 50", http.StatusBadRequest)
			return
		}
		k = *req.K
	}
	if req.Window != nil {
		if *req.Window < 0 || *req.Window > 5 {
			jsonError(w, "window must be between 0 and 5", http.StatusBadRequest)
			return
		}
		window = *req.Window
	}

	res, err := s.deps.Retriever.Retrieve(r.Context(), req.Question, k, window)
	if err != nil {
		s.log.Error("retrieve failed", "error", err)
		jsonError(w, "retrieve failed", http.StatusInternalServerError)
		return
	}

	labeled, err := retrieve.Label(r.Context(), s.deps.Sources, res.Fragments)
	if err != nil {
		s.log.Warn("title lookup failed, labeling by source id", "error", err)
		labeled = make([]retrieve.Labeled, len(res.Fragments))
		for i, f := range res.Fragments {
			labeled[i] = retrieve.Labeled{Fragment: f, Title: f.SourceID, Label: f.SourceID}
		}
	}
	if labeled == nil {
		labeled = []retrieve.Labeled{}
	}

	writeJSON(w, http.StatusOK, retrieveResponse{
		Mode:      res.Mode,
		Cached:    res.Cached,
		Fragments: labeled,
	})
}
