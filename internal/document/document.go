// Package document defines the units that flow through ingestion and retrieval:
// loaded documents, the chunks split from them, and the metadata that identifies a chunk.
package document

// Origin tells where a document was loaded from.
type Origin int

const (
	// OriginFile is a document read from the local filesystem. Its source is a path
	// and is made relative to the working directory before it becomes part of a chunk ID.
	OriginFile Origin = iota
	// OriginRemote is a document fetched from a remote repository. Its source is already
	// a stable namespaced path and is used as-is.
	OriginRemote
)

// Document is extracted text plus the identifier of where it came from.
// Documents are never persisted; only the chunks split from them are.
type Document struct {
	Source string // File path or remote path: "data/notes/week1.txt"
	Text   string // Extracted text, not yet normalized
	Origin Origin
	Format string // "txt", "md", "html", "pdf"
}

// Metadata identifies a chunk within the corpus.
// Both fields are optional so that a missing value is visible rather than a zero value
// that could pass for a real source or index.
type Metadata struct {
	Source     *string
	ChunkIndex *int
}

// Sentinels substituted when a metadata field is missing.
const (
	UnknownSource = "unknown"
	UnknownIndex  = -1
)

// NewMetadata returns metadata with both fields present.
func NewMetadata(source string, chunkIndex int) Metadata {
	return Metadata{Source: &source, ChunkIndex: &chunkIndex}
}

// SourceOrDefault returns the source, or UnknownSource when it is missing.
func (m Metadata) SourceOrDefault() string {
	if m.Source == nil || *m.Source == "" {
		return UnknownSource
	}
	return *m.Source
}

// ChunkIndexOrDefault returns the chunk index, or UnknownIndex when it is missing.
func (m Metadata) ChunkIndexOrDefault() int {
	if m.ChunkIndex == nil {
		return UnknownIndex
	}
	return *m.ChunkIndex
}

// Complete reports whether both source and chunk index are present.
func (m Metadata) Complete() bool {
	return m.Source != nil && *m.Source != "" && m.ChunkIndex != nil
}

// Chunk is a window of a document's normalized text.
type Chunk struct {
	Text     string
	Metadata Metadata
	Start    int // Rune offset of the window in the normalized document text
	End      int // Exclusive rune offset
}
