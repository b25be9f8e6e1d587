package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mike-a-ellis/prepme-rag/internal/document"
	"github.com/mike-a-ellis/prepme-rag/internal/embedding"
	"github.com/mike-a-ellis/prepme-rag/internal/storage"
)

// ErrExistenceUnavailable is returned in strict mode when the store cannot tell which
// chunks are already indexed.
var ErrExistenceUnavailable = errors.New("existence check unavailable")

// Embedder turns texts into vectors, one per text, in order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// UpsertResult reports what one UpsertBatch call did with its input.
type UpsertResult struct {
	Candidates       int // Chunks passed in
	Inserted         int // Records written
	SkippedDuplicate int // Identifier already stored, or repeated within the batch
	SkippedEmpty     int // Chunk text was empty
	Malformed        int // Chunks indexed under a sentinel identifier
	Existence        storage.ExistenceState
	Total            int // Records in the store afterwards, -1 if the count failed
}

// Indexer writes chunks into the vector store at most once per identifier.
type Indexer struct {
	store    storage.VectorStore
	embedder Embedder
	strict   bool
	logger   *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithStrictDedup makes UpsertBatch fail instead of treating an unavailable existence
// check as "nothing stored yet".
func WithStrictDedup(strict bool) Option {
	return func(ix *Indexer) {
		ix.strict = strict
	}
}

// NewIndexer creates an Indexer.
func NewIndexer(store storage.VectorStore, embedder Embedder, logger *slog.Logger, opts ...Option) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	ix := &Indexer{
		store:    store,
		embedder: embedder,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// UpsertBatch indexes the chunks that are not stored yet.
//
// Identity is (source, chunk_index) only: a chunk whose text changed since it was
// indexed keeps its identifier and is skipped as a duplicate. Nothing is embedded when
// nothing is new, and nothing is written unless the whole batch embedded successfully.
func (ix *Indexer) UpsertBatch(ctx context.Context, chunks []document.Chunk) (*UpsertResult, error) {
	result := &UpsertResult{Candidates: len(chunks), Total: -1}

	// 1. Identifiers
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		if !c.Metadata.Complete() {
			result.Malformed++
			ix.logger.Warn("Chunk metadata incomplete, using sentinel identifier",
				"position", i, "source", c.Metadata.SourceOrDefault(), "chunk_index", c.Metadata.ChunkIndexOrDefault())
		}
		ids[i] = document.Key(c.Metadata)
	}

	// 2. Dedup gate: one bulk existence check
	existing := ix.store.Exists(ctx, ids)
	result.Existence = existing.State
	switch existing.State {
	case storage.ExistenceUnavailable:
		if ix.strict {
			return result, fmt.Errorf("%w: %v", ErrExistenceUnavailable, existing.Err)
		}
		ix.logger.Warn("Existence check failed, treating all chunks as new; duplicates are possible",
			"error", existing.Err)
	case storage.ExistenceStoreNew:
		ix.logger.Debug("Collection is new, nothing indexed yet")
	}

	// 3. Keep chunks that are new and non-empty
	seen := make(map[string]struct{}, len(chunks))
	var (
		newIDs    []string
		newChunks []document.Chunk
	)
	for i, c := range chunks {
		id := ids[i]
		if _, dup := seen[id]; dup || existing.Has(id) {
			result.SkippedDuplicate++
			continue
		}
		if c.Text == "" {
			result.SkippedEmpty++
			continue
		}
		seen[id] = struct{}{}
		newIDs = append(newIDs, id)
		newChunks = append(newChunks, c)
	}

	// 4. Nothing new: no embedding call
	if len(newChunks) == 0 {
		ix.logger.Info("No new chunks to index",
			"duplicates", result.SkippedDuplicate, "empty", result.SkippedEmpty)
		result.Total = ix.count(ctx)
		return result, nil
	}

	// 5. Embed as one batch and normalize
	texts := make([]string, len(newChunks))
	for i, c := range newChunks {
		texts[i] = c.Text
	}
	vectors, err := ix.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return result, fmt.Errorf("embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return result, fmt.Errorf("%w: got %d vectors for %d texts",
			embedding.ErrCountMismatch, len(vectors), len(texts))
	}
	embedding.NormalizeAll(vectors)

	// 6. One bulk insert
	records := make([]storage.Record, len(newChunks))
	for i, c := range newChunks {
		records[i] = storage.Record{
			ID:       newIDs[i],
			Vector:   vectors[i],
			Text:     c.Text,
			Metadata: c.Metadata,
		}
	}
	if err := ix.store.Insert(ctx, records); err != nil {
		return result, fmt.Errorf("store records: %w", err)
	}

	// 7. Report
	result.Inserted = len(records)
	result.Total = ix.count(ctx)
	ix.logger.Info("Indexed new vectors",
		"inserted", result.Inserted,
		"duplicates", result.SkippedDuplicate,
		"empty", result.SkippedEmpty,
		"total", result.Total,
	)

	return result, nil
}

func (ix *Indexer) count(ctx context.Context) int {
	n, err := ix.store.Count(ctx)
	if err != nil {
		ix.logger.Warn("Failed to count records", "error", err)
		return -1
	}
	return n
}
