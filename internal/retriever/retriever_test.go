package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-a-ellis/prepme-rag/internal/document"
	"github.com/mike-a-ellis/prepme-rag/internal/storage"
)

type fakeEmbedder struct {
	vector []float32
	calls  int
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	f.calls++
	return f.vector, nil
}

func newStore(t *testing.T, records ...storage.Record) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(t.TempDir(), "test", 3)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureCollection(context.Background()))
	require.NoError(t, store.Insert(context.Background(), records))
	return store
}

func rec(source string, idx int, text string, vec ...float32) storage.Record {
	md := document.NewMetadata(source, idx)
	return storage.Record{ID: document.Key(md), Vector: vec, Text: text, Metadata: md}
}

func TestQuery_OrderedByDistance(t *testing.T) {
	store := newStore(t,
		rec("a.txt", 0, "x axis", 1, 0, 0),
		rec("a.txt", 1, "y axis", 0, 1, 0),
		rec("a.txt", 2, "diagonal", 0.7071, 0.7071, 0),
	)
	// Not unit length on purpose: the retriever normalizes
	r := New(store, &fakeEmbedder{vector: []float32{2, 0, 0}}, nil)

	hits, err := r.Query(context.Background(), "x?", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "x axis", hits[0].Text)
	assert.Equal(t, "diagonal", hits[1].Text)
	assert.InDelta(t, 0, hits[0].Distance, 1e-5)
	assert.LessOrEqual(t, hits[0].Distance, hits[1].Distance)
}

func TestQuery_KLargerThanStore(t *testing.T) {
	store := newStore(t, rec("a.txt", 0, "only", 1, 0, 0))
	hits, err := New(store, &fakeEmbedder{vector: []float32{0, 1, 0}}, nil).Query(context.Background(), "q", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestQuery_EmptyStore(t *testing.T) {
	store := newStore(t)
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}

	hits, err := New(store, emb, nil).Query(context.Background(), "anything", 4)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.NotNil(t, hits)
	assert.Equal(t, 0, emb.calls)
}

func TestQuery_InvalidTopK(t *testing.T) {
	store := newStore(t)
	_, err := New(store, &fakeEmbedder{}, nil).Query(context.Background(), "q", 0)
	assert.True(t, errors.Is(err, ErrInvalidTopK))
}

func TestQuery_DoesNotMutate(t *testing.T) {
	store := newStore(t, rec("a.txt", 0, "x", 1, 0, 0), rec("a.txt", 1, "y", 0, 1, 0))
	r := New(store, &fakeEmbedder{vector: []float32{1, 0, 0}}, nil)

	for i := 0; i < 3; i++ {
		_, err := r.Query(context.Background(), "q", 1)
		require.NoError(t, err)
	}
	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
