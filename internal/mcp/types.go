// Package mcp exposes document search and grounded answers over the Model Context Protocol.
package mcp

// SearchDocumentsInput defines the input parameters for the search_documents tool.
type SearchDocumentsInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"the text to search the indexed documents for"`
	// TopK is the maximum number of chunks to return.
	TopK int `json:"top_k,omitempty" jsonschema:"maximum number of chunks to return, defaults to the server's configured top-k"`
}

// SearchDocumentsOutput contains the search results.
type SearchDocumentsOutput struct {
	// Results are ordered by ascending distance.
	Results []Citation `json:"results"`
	// Context is the assembled, citation-numbered context block for the results.
	Context string `json:"context"`
	// Message provides informational context (e.g., "No matching chunks found").
	Message string `json:"message,omitempty"`
}

// Citation is one retrieved chunk.
type Citation struct {
	Rank       int     `json:"rank"`
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Distance   float64 `json:"distance"`
	Text       string  `json:"text,omitempty"`
}

// AskDocumentsInput defines the input parameters for the ask_documents tool.
type AskDocumentsInput struct {
	// Question is answered from the indexed documents only.
	Question string `json:"question" jsonschema:"the question to answer from the indexed documents"`
}

// AskDocumentsOutput contains a grounded answer and the chunks it was built from.
type AskDocumentsOutput struct {
	Answer  string     `json:"answer"`
	Sources []Citation `json:"sources"`
}

// StatusInput defines the input parameters for the get_index_status tool.
// This tool takes no parameters.
type StatusInput struct{}

// StatusOutput describes the index.
type StatusOutput struct {
	Backend     string `json:"backend"`
	Location    string `json:"location"`
	Collection  string `json:"collection"`
	TotalChunks int    `json:"total_chunks"`
}
