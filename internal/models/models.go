package models

import "time"

// PageText is the raw text of one extracted page. PageNumber starts at 1.
type PageText struct {
	PageNumber int
	Raw        string
}

// Chunk is a packed run of sentences, ready for embedding and storage.
type Chunk struct {
	ChunkIndex   int    `json:"chunk_index"` // Sequence number within the source, from 0
	Content      string `json:"content"`
	PageFrom     int    `json:"page_from"`
	PageTo       int    `json:"page_to"`
	ApproxTokens int    `json:"approx_tokens"`
}

// Fragment is a stored chunk. (SourceID, ChunkIndex) is unique.
type Fragment struct {
	ID           string    `db:"id" json:"id"`
	SourceID     string    `db:"source_id" json:"source_id"`
	ChunkIndex   int       `db:"chunk_index" json:"chunk_index"`
	Content      string    `db:"content" json:"content"`
	PageFrom     int       `db:"page_from" json:"page_from"`
	PageTo       int       `db:"page_to" json:"page_to"`
	ApproxTokens int       `db:"approx_tokens" json:"approx_tokens"`
	Embedding    []float32 `db:"embedding" json:"-"` // nil when embedding failed
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Source is an ingested document.
type Source struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	FileName    string    `db:"file_name" json:"file_name"`
	PageCount   int       `db:"page_count" json:"page_count"`
	ContentHash string    `db:"content_hash" json:"content_hash"`
	StorageURL  string    `db:"storage_url" json:"storage_url,omitempty"` // archived original, if any
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
