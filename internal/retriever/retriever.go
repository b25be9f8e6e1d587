// Package retriever answers similarity queries against the vector store.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mike-a-ellis/prepme-rag/internal/embedding"
	"github.com/mike-a-ellis/prepme-rag/internal/storage"
)

// DefaultTopK is the number of hits returned when none is configured.
const DefaultTopK = 4

// ErrInvalidTopK is returned for k < 1.
var ErrInvalidTopK = errors.New("top-k must be at least 1")

// QueryEmbedder embeds a single query text.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever finds the stored chunks closest to a query. It never writes to the store.
type Retriever struct {
	store    storage.VectorStore
	embedder QueryEmbedder
	logger   *slog.Logger
}

// New creates a Retriever.
func New(store storage.VectorStore, embedder QueryEmbedder, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, embedder: embedder, logger: logger}
}

// Query returns at most k hits ordered by ascending distance. An empty store yields an
// empty result without calling the embedder.
func (r *Retriever) Query(ctx context.Context, text string, k int) ([]storage.Hit, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, k)
	}

	n, err := r.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	if n == 0 {
		r.logger.Debug("Store is empty, nothing to retrieve")
		return []storage.Hit{}, nil
	}
	k = min(k, n)

	vector, err := r.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	// Same normalization as indexing, whatever the embedder already did
	vector = embedding.Normalize(vector)

	hits, err := r.store.Query(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}
	if len(hits) > k {
		hits = hits[:k]
	}

	r.logger.Debug("Retrieved hits", "k", k, "hits", len(hits))
	return hits, nil
}
