// Package embed produces vector embeddings for fragment text.
package embed

import (
	"context"
	"errors"
)

// ErrDisabled is returned by Disabled. Callers store fragments without an
// embedding.
var ErrDisabled = errors.New("embed: provider disabled")

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Disabled is the embedder used when no provider is configured.
type Disabled struct{}

func (Disabled) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrDisabled
}
