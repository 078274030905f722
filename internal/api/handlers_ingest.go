package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/binz0209/vihis/internal/ingest"
	"github.com/binz0209/vihis/internal/parser"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	profile, err := s.profileFromForm(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	filename := sanitizeFilename(header.Filename)
	data, code, err := s.readUpload(file, filename)
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}

	sourceID := strings.TrimSpace(r.FormValue("source_id"))
	if sourceID == "" {
		sourceID = uuid.NewString()
	}
	force := r.FormValue("force") == "true"

	job := ingest.NewJob(uuid.NewString(), sourceID, filename, r.FormValue("title"), data, profile, force)
	if err := s.deps.Orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, jobAccepted(job))
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.deps.Orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleBatchIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	profile, err := s.profileFromForm(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	force := r.FormValue("force") == "true"

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		data, err := s.readFileHeader(fh, filename)
		if err != nil {
			results = append(results, map[string]any{"filename": filename, "error": err.Error()})
			continue
		}

		job := ingest.NewJob(uuid.NewString(), uuid.NewString(), filename, "", data, profile, force)
		if err := s.deps.Orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{"filename": filename, "error": err.Error()})
			continue
		}
		res := jobAccepted(job)
		res["filename"] = filename
		results = append(results, res)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) readFileHeader(fh *multipart.FileHeader, filename string) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file")
	}
	defer f.Close()
	data, _, err := s.readUpload(f, filename)
	return data, err
}

// readUpload validates the extension and reads at most MaxUploadBytes.
func (s *Server) readUpload(r io.Reader, filename string) ([]byte, int, error) {
	if !parser.IsSupportedExtension(filename) {
		return nil, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	if len(data) == 0 {
		return nil, http.StatusBadRequest, errors.New("file is empty")
	}
	return data, 0, nil
}

// profileFromForm starts from the configured defaults and applies the
// optional chunk_tokens, overlap_tokens and threshold overrides.
func (s *Server) profileFromForm(r *http.Request) (*ingest.Profile, error) {
	p := &ingest.Profile{
		MinChunkTokens:            s.cfg.ChunkTokens,
		OverlapTokens:             s.cfg.OverlapTokens,
		HeaderFooterFreqThreshold: s.cfg.HeaderFooterThreshold,
		Abbreviations:             s.cfg.Abbreviations,
	}
	if v := r.FormValue("chunk_tokens"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("chunk_tokens must be a positive integer")
		}
		p.MinChunkTokens = n
	}
	if v := r.FormValue("overlap_tokens"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("overlap_tokens must be a non-negative integer")
		}
		p.OverlapTokens = n
	}
	if p.OverlapTokens >= p.MinChunkTokens {
		return nil, fmt.Errorf("overlap_tokens (%d) must be smaller than chunk_tokens (%d)", p.OverlapTokens, p.MinChunkTokens)
	}
	if v := r.FormValue("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 1 {
			return nil, fmt.Errorf("threshold must be in (0, 1]")
		}
		p.HeaderFooterFreqThreshold = f
	}
	return p, nil
}

func jobAccepted(job *ingest.Job) map[string]any {
	snap := job.Snapshot()
	return map[string]any{
		"job_id":    snap.ID,
		"source_id": snap.SourceID,
		"status":    snap.Status,
		"poll_url":  fmt.Sprintf("/api/ingest/%s/status", snap.ID),
	}
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
