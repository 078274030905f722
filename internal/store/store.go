// Package store defines the persistence contracts for sources and
// fragments. Implementations live in memstore and pgstore.
package store

import (
	"context"
	"errors"

	"github.com/binz0209/vihis/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("store: not found")

	// ErrIndexUnavailable is returned by Search when the text index has not
	// been created.
	ErrIndexUnavailable = errors.New("store: text index unavailable")
)

// FragmentStore persists and queries fragments.
type FragmentStore interface {
	// Search ranks fragments by full-text relevance, best first.
	Search(ctx context.Context, query string, limit int) ([]models.Fragment, error)
	// SearchSubstring is the degraded path: case-insensitive substring
	// match ordered by (SourceID, ChunkIndex).
	SearchSubstring(ctx context.Context, query string, limit int) ([]models.Fragment, error)
	// FindBySource returns all fragments of a source sorted by ChunkIndex.
	FindBySource(ctx context.Context, sourceID string) ([]models.Fragment, error)
	// Insert upserts one fragment keyed by (SourceID, ChunkIndex). On
	// update the existing ID is kept and written back to f.ID.
	Insert(ctx context.Context, f *models.Fragment) error
}

// SourceStore persists source documents.
type SourceStore interface {
	CreateSource(ctx context.Context, s *models.Source) error
	UpdateSourcePageCount(ctx context.Context, id string, pageCount int) error
	GetSource(ctx context.Context, id string) (*models.Source, error)
	FindSourceByHash(ctx context.Context, hash string) (*models.Source, error)
	// DeleteSource removes a source and all of its fragments.
	DeleteSource(ctx context.Context, id string) error
	// GetTitles maps source IDs to titles. Unknown IDs are omitted.
	GetTitles(ctx context.Context, ids []string) (map[string]string, error)
}

// Store is a complete backend.
type Store interface {
	FragmentStore
	SourceStore
	// EnsureIndexes creates the text index and schema. Safe to call more
	// than once.
	EnsureIndexes(ctx context.Context) error
	Close() error
}
