package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/binz0209/vihis/internal/api"
	"github.com/binz0209/vihis/internal/blob"
	"github.com/binz0209/vihis/internal/config"
	"github.com/binz0209/vihis/internal/embed"
	"github.com/binz0209/vihis/internal/ingest"
	"github.com/binz0209/vihis/internal/parser"
	"github.com/binz0209/vihis/internal/retrieve"
	"github.com/binz0209/vihis/internal/store"
	"github.com/binz0209/vihis/internal/store/memstore"
	"github.com/binz0209/vihis/internal/store/pgstore"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("store init failed", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	if err := st.EnsureIndexes(ctx); err != nil {
		log.Error("ensure indexes failed", "error", err)
		os.Exit(1)
	}

	embedder, closeEmbedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		log.Error("embedder init failed", "provider", cfg.EmbedProvider, "error", err)
		os.Exit(1)
	}
	stats := embed.NewLatencyStats(time.Hour)
	retrying := embed.WithRetry(embedder, stats, log.With("component", "embed"))

	archive, err := newArchiver(ctx, cfg)
	if err != nil {
		log.Error("archive init failed", "error", err)
		os.Exit(1)
	}

	ret := retrieve.New(st, nil, log.With("component", "retrieve"), retrieve.Options{
		DefaultK:      cfg.RetrieveK,
		DefaultWindow: cfg.RetrieveWindow,
		CacheTTL:      cfg.CacheTTL,
	})

	pipe := ingest.NewPipeline(st, retrying, log.With("component", "ingest"), ingest.PipelineOptions{
		MaxConcurrentEmbed: cfg.MaxConcurrentEmbed,
		Parser:             parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext},
	})
	orch := ingest.NewOrchestrator(pipe, st, archive, log, ingest.OrchestratorOptions{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
	})
	orch.OnIngested(func(sourceID string) {
		ret.Invalidate()
		log.Debug("retrieval cache purged", "source_id", sourceID)
	})
	orch.Start(ctx)

	srv := api.NewServer(api.Deps{
		Orchestrator: orch,
		Retriever:    ret,
		Sources:      st,
		EmbedStats:   stats,
	}, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		if err := closeEmbedder(); err != nil {
			log.Warn("embedder close failed", "error", err)
		}
		if err := st.Close(); err != nil {
			log.Warn("store close failed", "error", err)
		}
	}()

	log.Info("starting vihis", "port", cfg.Port, "store", cfg.StoreBackend, "embed", cfg.EmbedProvider)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, error) {
	if cfg.StoreBackend == "postgres" {
		return pgstore.Open(ctx, pgstore.DefaultConfig(cfg.DatabaseURL), log.With("component", "pgstore"))
	}
	return memstore.New(), nil
}

func newEmbedder(ctx context.Context, cfg config.Config) (embed.Embedder, func() error, error) {
	if cfg.EmbedProvider != "gemini" {
		return embed.Disabled{}, func() error { return nil }, nil
	}
	g, err := embed.NewGemini(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, nil, err
	}
	return g, g.Close, nil
}

func newArchiver(ctx context.Context, cfg config.Config) (blob.Archiver, error) {
	if cfg.S3Bucket == "" {
		return blob.Discard{}, nil
	}
	return blob.NewS3(ctx, blob.S3Config{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.AWSRegion,
		AccessKey: cfg.AWSAccessKey,
		SecretKey: cfg.AWSSecretKey,
	})
}
