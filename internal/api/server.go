package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/binz0209/vihis/internal/config"
	"github.com/binz0209/vihis/internal/embed"
	"github.com/binz0209/vihis/internal/ingest"
	"github.com/binz0209/vihis/internal/models"
	"github.com/binz0209/vihis/internal/retrieve"
)

// SourceReader is the read side of the store used by the API.
type SourceReader interface {
	GetSource(ctx context.Context, id string) (*models.Source, error)
	FindBySource(ctx context.Context, sourceID string) ([]models.Fragment, error)
	GetTitles(ctx context.Context, ids []string) (map[string]string, error)
}

// Retriever answers retrieval requests.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k, window int) (*retrieve.Result, error)
}

// Deps are the components behind the HTTP surface.
type Deps struct {
	Orchestrator *ingest.Orchestrator
	Retriever    Retriever
	Sources      SourceReader
	EmbedStats   *embed.LatencyStats
}

// Server is the HTTP API server for vihis.
type Server struct {
	router chi.Router
	deps   Deps
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		deps: deps,
		log:  log,
		cfg:  cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/ingest", s.handleIngest)
		r.Post("/api/ingest/batch", s.handleBatchIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)

		r.Post("/api/retrieve", s.handleRetrieve)

		r.Get("/api/sources/{sourceID}", s.handleGetSource)
		r.Get("/api/sources/{sourceID}/fragments", s.handleSourceFragments)

		r.Get("/api/stats/embed", s.handleEmbedStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.deps.Orchestrator.QueueDepth(),
	})
}
