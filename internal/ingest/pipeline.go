// Package ingest turns uploaded documents into stored fragments: extract
// pages, normalize, strip running headers and footers, split sentences,
// pack chunks, then embed and insert each chunk concurrently.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/binz0209/vihis/internal/chunker"
	"github.com/binz0209/vihis/internal/embed"
	"github.com/binz0209/vihis/internal/headerfooter"
	"github.com/binz0209/vihis/internal/models"
	"github.com/binz0209/vihis/internal/parser"
	"github.com/binz0209/vihis/internal/textclean"
)

// ChunkStatus is the persistence outcome of one chunk.
type ChunkStatus string

const (
	ChunkStored                 ChunkStatus = "stored"
	ChunkStoredWithoutEmbedding ChunkStatus = "stored_without_embedding"
	ChunkFailed                 ChunkStatus = "failed"
	ChunkCancelled              ChunkStatus = "cancelled"
)

// Document is one upload to run through the pipeline.
type Document struct {
	SourceID string
	Filename string
	Body     io.Reader

	// Progress, if set, receives stage and per-chunk updates.
	Progress Progress
}

// ChunkOutcome pairs a produced chunk with what happened to it.
type ChunkOutcome struct {
	Chunk      models.Chunk `json:"chunk"`
	FragmentID string       `json:"fragment_id,omitempty"`
	Status     ChunkStatus  `json:"status"`
	Error      string       `json:"error,omitempty"`
}

// Result lists every produced chunk, whether or not it was persisted.
type Result struct {
	Title        string         `json:"title"`
	Chunks       []ChunkOutcome `json:"chunks"`
	PageCount    int            `json:"page_count"`
	RawPageCount int            `json:"raw_page_count"`
	Stored       int            `json:"stored"`
	Embedded     int            `json:"embedded"`
	Failed       int            `json:"failed"`
	Cancelled    int            `json:"cancelled"`
}

// FragmentWriter persists fragments.
type FragmentWriter interface {
	Insert(ctx context.Context, f *models.Fragment) error
}

// Extractor picks a parser for a filename.
type Extractor func(filename string) (parser.Parser, error)

// PipelineOptions tune a Pipeline. Zero values take defaults.
type PipelineOptions struct {
	MaxConcurrentEmbed int
	Parser             parser.Options
	Extractor          Extractor // defaults to parser.ForFile
}

// Pipeline runs documents from raw bytes to stored fragments.
type Pipeline struct {
	store    FragmentWriter
	embedder embed.Embedder
	extract  Extractor
	log      *slog.Logger
	limit    int
	now      func() time.Time
}

func NewPipeline(store FragmentWriter, embedder embed.Embedder, log *slog.Logger, opts PipelineOptions) *Pipeline {
	if embedder == nil {
		embedder = embed.Disabled{}
	}
	if log == nil {
		log = slog.Default()
	}
	extract := opts.Extractor
	if extract == nil {
		popts := opts.Parser
		extract = func(filename string) (parser.Parser, error) {
			return parser.ForFile(filename, popts)
		}
	}
	return &Pipeline{
		store:    store,
		embedder: embedder,
		extract:  extract,
		log:      log,
		limit:    max(opts.MaxConcurrentEmbed, 1),
		now:      time.Now,
	}
}

// Run ingests doc. Only extraction failures are returned as errors;
// embedding and insert failures are reported per chunk in the Result.
func (p *Pipeline) Run(ctx context.Context, doc Document, profile *Profile) (*Result, error) {
	prof := profile.withDefaults()
	log := p.log.With("source_id", doc.SourceID, "filename", doc.Filename)

	parsed, err := p.extractPages(doc)
	if err != nil {
		return nil, err
	}

	progress := doc.Progress
	if progress == nil {
		progress = nopProgress{}
	}
	progress.SetStatus(StatusChunking, "chunking")

	pages := make([]models.PageText, len(parsed.Pages))
	for i, pg := range parsed.Pages {
		pages[i] = models.PageText{PageNumber: pg.PageNumber, Raw: textclean.Prepare(pg.Raw)}
	}
	pages = mergeShortPages(pages, MinPageChars)

	header, footer := headerfooter.Detect(pages, headerfooter.DefaultHeadLines, headerfooter.DefaultFootLines, prof.HeaderFooterFreqThreshold)
	pages = headerfooter.Strip(pages, header, footer)

	chunks := slices.Collect(chunker.Pack(flatten(pages, prof.Abbreviations), prof.MinChunkTokens, prof.OverlapTokens))
	log.Info("chunked document",
		"raw_pages", len(parsed.Pages), "pages", len(pages),
		"headers", len(header), "footers", len(footer), "chunks", len(chunks))

	res := &Result{
		Title:        parsed.Title,
		Chunks:       make([]ChunkOutcome, len(chunks)),
		PageCount:    len(pages),
		RawPageCount: len(parsed.Pages),
	}

	progress.SetTotalChunks(len(chunks))
	progress.SetStatus(StatusEmbedding, "embedding")

	var g errgroup.Group
	g.SetLimit(p.limit)
	for i, c := range chunks {
		g.Go(func() error {
			res.Chunks[i] = p.persist(ctx, log, doc.SourceID, c)
			progress.ChunkDone(res.Chunks[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range res.Chunks {
		switch o.Status {
		case ChunkStored:
			res.Stored++
			res.Embedded++
		case ChunkStoredWithoutEmbedding:
			res.Stored++
		case ChunkFailed:
			res.Failed++
		case ChunkCancelled:
			res.Cancelled++
		}
	}
	log.Info("ingestion run complete",
		"stored", res.Stored, "embedded", res.Embedded, "failed", res.Failed, "cancelled", res.Cancelled)
	return res, nil
}

func (p *Pipeline) extractPages(doc Document) (*parser.Document, error) {
	ps, err := p.extract(doc.Filename)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	parsed, err := ps.Parse(doc.Body, doc.Filename)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", doc.Filename, err)
	}
	return parsed, nil
}

// persist embeds and inserts one chunk. Nothing is written once ctx is done.
func (p *Pipeline) persist(ctx context.Context, log *slog.Logger, sourceID string, c models.Chunk) ChunkOutcome {
	out := ChunkOutcome{Chunk: c}
	if err := ctx.Err(); err != nil {
		out.Status, out.Error = ChunkCancelled, err.Error()
		return out
	}

	vec, err := p.embedder.Embed(ctx, c.Content)
	if err != nil {
		vec = nil
		if !errors.Is(err, embed.ErrDisabled) {
			log.Warn("embedding failed, storing without vector", "chunk", c.ChunkIndex, "error", err)
			out.Error = err.Error()
		}
	}

	if err := ctx.Err(); err != nil {
		out.Status, out.Error = ChunkCancelled, err.Error()
		return out
	}

	f := &models.Fragment{
		ID:           uuid.NewString(),
		SourceID:     sourceID,
		ChunkIndex:   c.ChunkIndex,
		Content:      c.Content,
		PageFrom:     c.PageFrom,
		PageTo:       c.PageTo,
		ApproxTokens: c.ApproxTokens,
		Embedding:    vec,
		CreatedAt:    p.now().UTC(),
	}
	if err := p.store.Insert(ctx, f); err != nil {
		log.Error("fragment insert failed", "chunk", c.ChunkIndex, "error", err)
		out.Status, out.Error = ChunkFailed, err.Error()
		return out
	}

	out.FragmentID = f.ID
	if vec != nil {
		out.Status = ChunkStored
	} else {
		out.Status = ChunkStoredWithoutEmbedding
	}
	return out
}

type nopProgress struct{}

func (nopProgress) SetStatus(JobStatus, string) {}
func (nopProgress) SetTotalChunks(int)          {}
func (nopProgress) ChunkDone(ChunkOutcome)      {}
