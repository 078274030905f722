// Package pgstore is the PostgreSQL store: pgx pool, GIN full-text index
// over fragment content and a pgvector column for embeddings.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/binz0209/vihis/internal/models"
	"github.com/binz0209/vihis/internal/store"
)

//go:embed schema.sql
var schemaSQL string

type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// DefaultConfig returns pool settings for the given DSN.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
		DialTimeout:     10 * time.Second,
	}
}

type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open creates the pool and pings the server.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "vihis"

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("connected to database")
	return &Store{pool: pool, log: log}, nil
}

// EnsureIndexes applies the embedded schema. Every statement is
// IF NOT EXISTS.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const fragmentCols = `id, source_id, chunk_index, content, page_from, page_to, approx_tokens, created_at`

func (s *Store) Search(ctx context.Context, query string, limit int) ([]models.Fragment, error) {
	tsq := orQuery(query)
	if tsq == "" || limit <= 0 {
		return nil, nil
	}
	const q = `
		SELECT ` + fragmentCols + `
		FROM fragments, to_tsquery('simple', $1) query
		WHERE to_tsvector('simple', content) @@ query
		ORDER BY ts_rank(to_tsvector('simple', content), query) DESC, source_id, chunk_index
		LIMIT $2`
	return s.queryFragments(ctx, q, tsq, limit)
}

func (s *Store) SearchSubstring(ctx context.Context, query string, limit int) ([]models.Fragment, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}
	const q = `
		SELECT ` + fragmentCols + `
		FROM fragments
		WHERE content ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY source_id, chunk_index
		LIMIT $2`
	return s.queryFragments(ctx, q, escapeLike(query), limit)
}

func (s *Store) FindBySource(ctx context.Context, sourceID string) ([]models.Fragment, error) {
	const q = `
		SELECT ` + fragmentCols + `
		FROM fragments
		WHERE source_id = $1
		ORDER BY chunk_index`
	return s.queryFragments(ctx, q, sourceID)
}

func (s *Store) queryFragments(ctx context.Context, q string, args ...any) ([]models.Fragment, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query fragments: %w", err)
	}
	defer rows.Close()

	var out []models.Fragment
	for rows.Next() {
		var f models.Fragment
		if err := rows.Scan(&f.ID, &f.SourceID, &f.ChunkIndex, &f.Content,
			&f.PageFrom, &f.PageTo, &f.ApproxTokens, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan fragment: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fragments: %w", err)
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, f *models.Fragment) error {
	if f == nil || f.ID == "" || f.SourceID == "" {
		return fmt.Errorf("insert fragment: id and source id are required")
	}
	var emb any
	if len(f.Embedding) > 0 {
		emb = pgvector.NewVector(f.Embedding)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO fragments (id, source_id, chunk_index, content, page_from, page_to, approx_tokens, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source_id, chunk_index) DO UPDATE SET
			content = EXCLUDED.content,
			page_from = EXCLUDED.page_from,
			page_to = EXCLUDED.page_to,
			approx_tokens = EXCLUDED.approx_tokens,
			embedding = EXCLUDED.embedding
		RETURNING id`
	err := s.pool.QueryRow(ctx, q, f.ID, f.SourceID, f.ChunkIndex, f.Content,
		f.PageFrom, f.PageTo, f.ApproxTokens, emb, f.CreatedAt).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("insert fragment %s/%d: %w", f.SourceID, f.ChunkIndex, err)
	}
	return nil
}

func (s *Store) CreateSource(ctx context.Context, src *models.Source) error {
	if src == nil || src.ID == "" {
		return fmt.Errorf("create source: id is required")
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = time.Now().UTC()
	}
	const q = `
		INSERT INTO sources (id, title, file_name, page_count, content_hash, storage_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.pool.Exec(ctx, q, src.ID, src.Title, src.FileName, src.PageCount,
		src.ContentHash, src.StorageURL, src.CreatedAt)
	if err != nil {
		return fmt.Errorf("create source %s: %w", src.ID, err)
	}
	return nil
}

func (s *Store) UpdateSourcePageCount(ctx context.Context, id string, pageCount int) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sources SET page_count = $2 WHERE id = $1`, id, pageCount)
	if err != nil {
		return fmt.Errorf("update source %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const sourceCols = `id, title, file_name, page_count, content_hash, storage_url, created_at`

func (s *Store) GetSource(ctx context.Context, id string) (*models.Source, error) {
	return s.getSource(ctx, `SELECT `+sourceCols+` FROM sources WHERE id = $1`, id)
}

func (s *Store) FindSourceByHash(ctx context.Context, hash string) (*models.Source, error) {
	return s.getSource(ctx, `SELECT `+sourceCols+` FROM sources WHERE content_hash = $1 LIMIT 1`, hash)
}

func (s *Store) getSource(ctx context.Context, q string, arg string) (*models.Source, error) {
	var src models.Source
	err := s.pool.QueryRow(ctx, q, arg).Scan(&src.ID, &src.Title, &src.FileName,
		&src.PageCount, &src.ContentHash, &src.StorageURL, &src.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return &src, nil
}

// DeleteSource removes the source row; fragments go with it through the
// ON DELETE CASCADE foreign key.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete source %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetTitles(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, title FROM sources WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get titles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		out[id] = title
	}
	return out, rows.Err()
}

// orQuery turns free text into a to_tsquery expression that matches any
// of its words. Only letters and digits survive, so the result is always
// valid tsquery syntax.
func orQuery(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
	})
	seen := make(map[string]bool, len(words))
	terms := words[:0]
	for _, w := range words {
		if !seen[w] {
			seen[w] = true
			terms = append(terms, w)
		}
	}
	return strings.Join(terms, " | ")
}

// escapeLike escapes LIKE wildcards with a backslash.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
