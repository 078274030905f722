// Package retrieve finds the fragments most relevant to a question and
// widens each hit with its neighbouring chunks from the same source.
package retrieve

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/binz0209/vihis/internal/cache"
	"github.com/binz0209/vihis/internal/models"
)

const (
	DefaultK        = 5
	DefaultWindow   = 1
	DefaultCacheTTL = 15 * time.Minute
)

// Store is the read side of the fragment store.
type Store interface {
	Search(ctx context.Context, query string, limit int) ([]models.Fragment, error)
	SearchSubstring(ctx context.Context, query string, limit int) ([]models.Fragment, error)
	FindBySource(ctx context.Context, sourceID string) ([]models.Fragment, error)
}

// Mode records which path produced the seed fragments.
type Mode string

const (
	ModeIndex    Mode = "index"
	ModeFallback Mode = "fallback" // text index failed or found nothing
)

type Result struct {
	Fragments []models.Fragment `json:"fragments"`
	Mode      Mode              `json:"mode"`
	Cached    bool              `json:"cached"`
}

func (r *Result) clone(cached bool) *Result {
	return &Result{
		Fragments: slices.Clone(r.Fragments),
		Mode:      r.Mode,
		Cached:    cached,
	}
}

// Key identifies a cached retrieval.
type Key struct {
	Query  string
	K      int
	Window int
}

// Cache holds results by key. Implementations must be safe for
// concurrent use and must not mutate stored results.
type Cache interface {
	Get(key Key) (*Result, bool)
	Set(key Key, r *Result)
	Purge()
}

type Options struct {
	DefaultK      int
	DefaultWindow int
	CacheTTL      time.Duration
}

type Retriever struct {
	store Store
	cache Cache
	log   *slog.Logger
	opts  Options
}

// New builds a retriever. A nil cache gets an in-process TTL cache.
func New(store Store, c Cache, log *slog.Logger, opts Options) *Retriever {
	if opts.DefaultK <= 0 {
		opts.DefaultK = DefaultK
	}
	if opts.DefaultWindow < 0 {
		opts.DefaultWindow = DefaultWindow
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if c == nil {
		c = cache.New[Key, *Result](opts.CacheTTL, nil)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{store: store, cache: c, log: log, opts: opts}
}

// Retrieve returns up to k seed fragments for question, each widened by
// window chunks on either side, deduplicated and sorted by
// (SourceID, ChunkIndex). At most k*(2*window+1) fragments are returned.
// k <= 0 uses the default; a negative window means the default.
func (r *Retriever) Retrieve(ctx context.Context, question string, k, window int) (*Result, error) {
	if k <= 0 {
		k = r.opts.DefaultK
	}
	if window < 0 {
		window = r.opts.DefaultWindow
	}
	query := NormalizeQuery(question)
	key := Key{Query: query, K: k, Window: window}

	if hit, ok := r.cache.Get(key); ok {
		return hit.clone(true), nil
	}
	if query == "" {
		return &Result{Mode: ModeIndex}, nil
	}

	seeds, mode, err := r.seeds(ctx, query, k)
	if err != nil {
		return nil, err
	}

	expanded, err := r.expand(ctx, seeds, window)
	if err != nil {
		return nil, err
	}

	frags := dedupeSorted(append(seeds, expanded...))
	if limit := k * (2*window + 1); len(frags) > limit {
		frags = frags[:limit]
	}

	res := &Result{Fragments: frags, Mode: mode}
	r.cache.Set(key, res.clone(false))
	r.log.Debug("retrieved", "query", query, "k", k, "window", window, "seeds", len(seeds), "fragments", len(frags), "mode", mode)
	return res, nil
}

// Invalidate drops every cached result. Called after new fragments land.
func (r *Retriever) Invalidate() {
	r.cache.Purge()
}

func (r *Retriever) seeds(ctx context.Context, query string, k int) ([]models.Fragment, Mode, error) {
	hits, err := r.store.Search(ctx, query, k)
	if err == nil && len(hits) > 0 {
		return truncate(hits, k), ModeIndex, nil
	}
	if err != nil {
		r.log.Warn("text search failed, using substring fallback", "error", err)
	}

	hits, err = r.store.SearchSubstring(ctx, query, k)
	if err != nil {
		return nil, "", fmt.Errorf("fallback search: %w", err)
	}
	return truncate(hits, k), ModeFallback, nil
}

// expand fetches each distinct source once, concurrently, and collects the
// window around every seed. A source that cannot be fetched contributes
// only its seeds.
func (r *Retriever) expand(ctx context.Context, seeds []models.Fragment, window int) ([]models.Fragment, error) {
	if window == 0 || len(seeds) == 0 {
		return nil, nil
	}

	bySource := map[string][]int{}
	var order []string
	for _, s := range seeds {
		if _, ok := bySource[s.SourceID]; !ok {
			order = append(order, s.SourceID)
		}
		bySource[s.SourceID] = append(bySource[s.SourceID], s.ChunkIndex)
	}

	results := make([][]models.Fragment, len(order))
	g, gctx := errgroup.WithContext(ctx)
	for i, sourceID := range order {
		g.Go(func() error {
			all, err := r.store.FindBySource(gctx, sourceID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.log.Warn("source fetch failed, keeping seeds only", "source_id", sourceID, "error", err)
				return nil
			}
			results[i] = neighbours(all, bySource[sourceID], window)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("expand window: %w", err)
	}
	return slices.Concat(results...), nil
}

// neighbours returns the fragments of a source (sorted by ChunkIndex)
// whose index lies within window of any center.
func neighbours(all []models.Fragment, centers []int, window int) []models.Fragment {
	var out []models.Fragment
	for _, c := range centers {
		lo, hi := c-window, c+window
		start := sort.Search(len(all), func(i int) bool { return all[i].ChunkIndex >= lo })
		for i := start; i < len(all) && all[i].ChunkIndex <= hi; i++ {
			out = append(out, all[i])
		}
	}
	return out
}

func dedupeSorted(frags []models.Fragment) []models.Fragment {
	seen := make(map[string]bool, len(frags))
	out := make([]models.Fragment, 0, len(frags))
	for _, f := range frags {
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		out = append(out, f)
	}
	slices.SortStableFunc(out, func(a, b models.Fragment) int {
		return cmp.Or(cmp.Compare(a.SourceID, b.SourceID), cmp.Compare(a.ChunkIndex, b.ChunkIndex))
	})
	return out
}

func truncate(frags []models.Fragment, n int) []models.Fragment {
	if len(frags) > n {
		return frags[:n]
	}
	return frags
}

// NormalizeQuery lowercases, trims and collapses whitespace.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
