//go:build integration

package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 8

// setupTestStorage creates a Qdrant store on a throwaway collection.
// Skips test if Qdrant is not running.
func setupTestStorage(t *testing.T) *QdrantStorage {
	collection := "test_" + uuid.New().String()
	storage, err := NewQdrantStorage("localhost", 6334, collection, testDimension)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	t.Cleanup(func() {
		storage.client.DeleteCollection(context.Background(), collection)
		storage.Close()
	})
	return storage
}

func unitVector(axis int) []float32 {
	v := make([]float32, testDimension)
	v[axis] = 1
	return v
}

func TestQdrant_ExistsBeforeCollection(t *testing.T) {
	storage := setupTestStorage(t)

	res := storage.Exists(context.Background(), []string{"a.txt::chunk_0"})
	assert.Equal(t, ExistenceStoreNew, res.State)
}

func TestQdrant_InsertExistsQueryCount(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()
	require.NoError(t, storage.EnsureCollection(ctx))

	records := []Record{
		record("a.txt", 0, "first axis", unitVector(0)...),
		record("a.txt", 1, "second axis", unitVector(1)...),
		record("b.txt", 2, "third axis", unitVector(2)...),
	}
	require.NoError(t, storage.Insert(ctx, records))

	res := storage.Exists(ctx, []string{"a.txt::chunk_0", "b.txt::chunk_2", "c.txt::chunk_9"})
	assert.Equal(t, ExistenceKnown, res.State)
	assert.True(t, res.Has("a.txt::chunk_0"))
	assert.True(t, res.Has("b.txt::chunk_2"))
	assert.False(t, res.Has("c.txt::chunk_9"))

	hits, err := storage.Query(ctx, unitVector(1), 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "second axis", hits[0].Text)
	assert.Equal(t, "a.txt::chunk_1", hits[0].ID)
	assert.Equal(t, 1, hits[0].Metadata.ChunkIndexOrDefault())
	assert.InDelta(t, 0, hits[0].Distance, 1e-4)
	assert.LessOrEqual(t, hits[0].Distance, hits[1].Distance)

	n, err := storage.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestQdrant_Reset(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()
	require.NoError(t, storage.EnsureCollection(ctx))
	require.NoError(t, storage.Insert(ctx, []Record{record("a.txt", 0, "x", unitVector(0)...)}))

	require.NoError(t, storage.Reset(ctx))

	n, err := storage.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestQdrant_InsertLargeBatch(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()
	require.NoError(t, storage.EnsureCollection(ctx))

	records := make([]Record, 250)
	for i := range records {
		records[i] = record("big.txt", i, fmt.Sprintf("chunk %d", i), unitVector(i%testDimension)...)
	}
	require.NoError(t, storage.Insert(ctx, records))

	n, err := storage.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250, n)
}
