// Package storage persists embedded chunks and answers similarity queries.
package storage

import (
	"context"
	"fmt"
	"math"
)

// VectorStore is the persistent store behind the vector index.
// Implementations assume a single writer and do no cross-process locking.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist. Idempotent.
	EnsureCollection(ctx context.Context) error

	// Exists reports which of ids are already stored, in one round trip.
	Exists(ctx context.Context, ids []string) ExistenceResult

	// Insert writes records in bulk. Identifiers already present are left untouched.
	Insert(ctx context.Context, records []Record) error

	// Query returns up to k hits ordered by ascending distance.
	Query(ctx context.Context, vector []float32, k int) ([]Hit, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Reset drops every record in the collection. Never called by indexing.
	Reset(ctx context.Context) error

	// Health checks connectivity.
	Health(ctx context.Context) error

	// Describe returns a short human-readable location, e.g. "qdrant localhost:6334".
	Describe() string

	Close() error
}

func validateRecords(records []Record, dimension int) error {
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: record %d has empty id", ErrInvalidRecord, i)
		}
		if dimension > 0 && len(r.Vector) != dimension {
			return fmt.Errorf("%w: record %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(r.Vector), dimension)
		}
	}
	return nil
}

// cosineDistance returns 1 - cosine similarity, in [0, 2].
// A zero vector is treated as orthogonal to everything.
func cosineDistance(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return clampDistance(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

func clampDistance(d float64) float64 {
	switch {
	case d < 0:
		return 0
	case d > 2:
		return 2
	default:
		return d
	}
}

var (
	_ VectorStore = (*QdrantStorage)(nil)
	_ VectorStore = (*SQLiteStore)(nil)
)
