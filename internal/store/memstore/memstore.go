// Package memstore is an in-process store backed by maps and an in-memory
// bleve full-text index.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/binz0209/vihis/internal/models"
	"github.com/binz0209/vihis/internal/store"
)

type key struct {
	sourceID string
	index    int
}

// Store implements store.Store in memory.
type Store struct {
	mu        sync.RWMutex
	fragments map[string]models.Fragment // by ID
	byKey     map[key]string             // (source, index) -> ID
	sources   map[string]models.Source

	index bleve.Index // nil until EnsureIndexes
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		fragments: make(map[string]models.Fragment),
		byKey:     make(map[key]string),
		sources:   make(map[string]models.Source),
	}
}

func indexMapping() mapping.IndexMapping {
	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	content.Store = false

	source := bleve.NewTextFieldMapping()
	source.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content", content)
	doc.AddFieldMappingsAt("source_id", source)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

func indexDoc(f models.Fragment) map[string]any {
	return map[string]any{
		"content":   f.Content,
		"source_id": f.SourceID,
	}
}

// EnsureIndexes builds the bleve index over everything stored so far.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		return nil
	}

	idx, err := bleve.NewMemOnly(indexMapping())
	if err != nil {
		return fmt.Errorf("create text index: %w", err)
	}
	batch := idx.NewBatch()
	for id, f := range s.fragments {
		if err := batch.Index(id, indexDoc(f)); err != nil {
			return fmt.Errorf("index fragment %s: %w", id, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("index batch: %w", err)
	}
	s.index = idx
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}

func (s *Store) Search(ctx context.Context, query string, limit int) ([]models.Fragment, error) {
	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()
	if idx == nil {
		return nil, store.ErrIndexUnavailable
	}
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}

	q := bleve.NewMatchQuery(query)
	q.SetField("content")
	req := bleve.NewSearchRequest(q)
	req.Size = limit

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Fragment, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if f, ok := s.fragments[hit.ID]; ok {
			out = append(out, clone(f))
		}
	}
	return out, nil
}

func (s *Store) SearchSubstring(ctx context.Context, query string, limit int) ([]models.Fragment, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" || limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	var out []models.Fragment
	for _, f := range s.fragments {
		if strings.Contains(strings.ToLower(f.Content), needle) {
			out = append(out, clone(f))
		}
	}
	s.mu.RUnlock()

	sortFragments(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) FindBySource(ctx context.Context, sourceID string) ([]models.Fragment, error) {
	s.mu.RLock()
	var out []models.Fragment
	for _, f := range s.fragments {
		if f.SourceID == sourceID {
			out = append(out, clone(f))
		}
	}
	s.mu.RUnlock()

	sortFragments(out)
	return out, nil
}

func (s *Store) Insert(ctx context.Context, f *models.Fragment) error {
	if f == nil || f.ID == "" || f.SourceID == "" {
		return fmt.Errorf("insert fragment: id and source id are required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{f.SourceID, f.ChunkIndex}
	if existing, ok := s.byKey[k]; ok {
		f.ID = existing
	}
	stored := clone(*f)
	if s.index != nil {
		if err := s.index.Index(stored.ID, indexDoc(stored)); err != nil {
			return fmt.Errorf("index fragment %s: %w", stored.ID, err)
		}
	}
	s.fragments[stored.ID] = stored
	s.byKey[k] = stored.ID
	return nil
}

func (s *Store) CreateSource(ctx context.Context, src *models.Source) error {
	if src == nil || src.ID == "" {
		return fmt.Errorf("create source: id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[src.ID]; ok {
		return fmt.Errorf("create source: %s already exists", src.ID)
	}
	s.sources[src.ID] = *src
	return nil
}

func (s *Store) UpdateSourcePageCount(ctx context.Context, id string, pageCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return store.ErrNotFound
	}
	src.PageCount = pageCount
	s.sources[id] = src
	return nil
}

func (s *Store) GetSource(ctx context.Context, id string) (*models.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &src, nil
}

func (s *Store) FindSourceByHash(ctx context.Context, hash string) (*models.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, src := range s.sources {
		if hash != "" && src.ContentHash == hash {
			return &src, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) DeleteSource(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.sources, id)
	for fid, f := range s.fragments {
		if f.SourceID != id {
			continue
		}
		if s.index != nil {
			if err := s.index.Delete(fid); err != nil {
				return fmt.Errorf("unindex fragment %s: %w", fid, err)
			}
		}
		delete(s.fragments, fid)
		delete(s.byKey, key{f.SourceID, f.ChunkIndex})
	}
	return nil
}

func (s *Store) GetTitles(ctx context.Context, ids []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if src, ok := s.sources[id]; ok {
			out[id] = src.Title
		}
	}
	return out, nil
}

func clone(f models.Fragment) models.Fragment {
	f.Embedding = slices.Clone(f.Embedding)
	return f
}

func sortFragments(fs []models.Fragment) {
	slices.SortFunc(fs, func(a, b models.Fragment) int {
		return cmp.Or(cmp.Compare(a.SourceID, b.SourceID), cmp.Compare(a.ChunkIndex, b.ChunkIndex))
	})
}
