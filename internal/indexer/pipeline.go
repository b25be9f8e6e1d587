// Package indexer turns loaded documents into deduplicated records in the vector store.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mike-a-ellis/prepme-rag/internal/chunker"
	"github.com/mike-a-ellis/prepme-rag/internal/loader"
)

// IndexResult contains statistics about an ingestion run.
type IndexResult struct {
	TotalDocs        int
	TotalChunks      int
	Inserted         int
	SkippedDuplicate int
	SkippedEmpty     int
	Malformed        int
	StoreTotal       int
	FailedDocs       []loader.FailedDoc
	Duration         time.Duration
}

// Pipeline orchestrates one ingestion run: load, split, upsert.
type Pipeline struct {
	splitter *chunker.Splitter
	indexer  *Indexer
	logger   *slog.Logger
}

// NewPipeline creates a new ingestion pipeline with the given components.
func NewPipeline(splitter *chunker.Splitter, indexer *Indexer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		splitter: splitter,
		indexer:  indexer,
		logger:   logger,
	}
}

// Run loads every document from src and indexes the chunks that are not stored yet.
// A missing source root fails the run before anything is written.
func (p *Pipeline) Run(ctx context.Context, src loader.Source) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{}

	// 1. Load
	p.logger.Info("Loading documents", "source", src.Name())
	loaded, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	result.TotalDocs = len(loaded.Documents)
	result.FailedDocs = loaded.Failed
	p.logger.Info("Loaded documents", "count", len(loaded.Documents), "failed", len(loaded.Failed))

	// 2. Split
	chunks := p.splitter.Split(loaded.Documents)
	result.TotalChunks = len(chunks)
	p.logger.Info("Created chunks", "count", len(chunks))

	// 3. Upsert
	upsert, err := p.indexer.UpsertBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("index chunks: %w", err)
	}
	result.Inserted = upsert.Inserted
	result.SkippedDuplicate = upsert.SkippedDuplicate
	result.SkippedEmpty = upsert.SkippedEmpty
	result.Malformed = upsert.Malformed
	result.StoreTotal = upsert.Total

	result.Duration = time.Since(start)
	p.logger.Info("Indexing complete",
		"documents", result.TotalDocs,
		"chunks", result.TotalChunks,
		"inserted", result.Inserted,
		"duration", result.Duration,
	)

	return result, nil
}
