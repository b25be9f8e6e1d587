package document

import "fmt"

// Key derives the dedup and upsert identifier for a chunk: "<source>::chunk_<index>".
// Missing fields are replaced by UnknownSource and UnknownIndex so that one malformed
// chunk never aborts a batch.
func Key(m Metadata) string {
	return fmt.Sprintf("%s::chunk_%d", m.SourceOrDefault(), m.ChunkIndexOrDefault())
}
