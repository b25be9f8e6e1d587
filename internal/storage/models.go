package storage

import "github.com/mike-a-ellis/prepme-rag/internal/document"

// Record is the persisted unit: one embedded chunk keyed by its identifier.
// Records are inserted once and never rewritten by indexing.
type Record struct {
	ID       string    // document.Key of the chunk: "data/a.txt::chunk_2"
	Vector   []float32 // Unit-length embedding
	Text     string    // Normalized chunk text
	Metadata document.Metadata
}

// Hit is one similarity search result. Smaller distance means more similar.
type Hit struct {
	ID       string
	Text     string
	Metadata document.Metadata
	Distance float64
}

// ExistenceState classifies the outcome of a bulk existence check.
type ExistenceState int

const (
	// ExistenceKnown means the store answered; Present holds the identifiers it has.
	ExistenceKnown ExistenceState = iota
	// ExistenceStoreNew means the collection has not been created yet, so nothing exists.
	ExistenceStoreNew
	// ExistenceUnavailable means the store could not be asked. Present is empty and Err
	// says why; callers decide whether to proceed and risk duplicates.
	ExistenceUnavailable
)

func (s ExistenceState) String() string {
	switch s {
	case ExistenceKnown:
		return "known"
	case ExistenceStoreNew:
		return "store_new"
	case ExistenceUnavailable:
		return "unavailable"
	default:
		return "invalid"
	}
}

// ExistenceResult is returned by VectorStore.Exists.
type ExistenceResult struct {
	State   ExistenceState
	Present map[string]struct{}
	Err     error
}

// Has reports whether id was found in the store.
func (r ExistenceResult) Has(id string) bool {
	_, ok := r.Present[id]
	return ok
}

func known(present map[string]struct{}) ExistenceResult {
	return ExistenceResult{State: ExistenceKnown, Present: present}
}

func storeNew() ExistenceResult {
	return ExistenceResult{State: ExistenceStoreNew, Present: map[string]struct{}{}}
}

func unavailable(err error) ExistenceResult {
	return ExistenceResult{State: ExistenceUnavailable, Present: map[string]struct{}{}, Err: err}
}

// DefaultCollection is the single collection every record lives in.
const DefaultCollection = "rag_collection"

// DefaultVectorDimension is the embedding size for text-embedding-3-small.
const DefaultVectorDimension = 1536
