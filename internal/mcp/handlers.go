package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mike-a-ellis/prepme-rag/internal/prompt"
	"github.com/mike-a-ellis/prepme-rag/internal/retriever"
	"github.com/mike-a-ellis/prepme-rag/internal/storage"
)

// maxTopK bounds search_documents so a client cannot pull the whole store.
const maxTopK = 20

// makeSearchHandler creates the search_documents tool handler.
func makeSearchHandler(backend Backend, defaultTopK int) func(
	context.Context, *mcp.CallToolRequest, SearchDocumentsInput,
) (*mcp.CallToolResult, SearchDocumentsOutput, error) {
	if defaultTopK <= 0 {
		defaultTopK = retriever.DefaultTopK
	}
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchDocumentsInput) (
		*mcp.CallToolResult, SearchDocumentsOutput, error,
	) {
		k := input.TopK
		if k <= 0 {
			k = defaultTopK
		}
		k = min(k, maxTopK)

		hits, err := backend.Search(ctx, input.Query, k)
		if err != nil {
			return nil, SearchDocumentsOutput{}, fmt.Errorf("search failed: %w", err)
		}

		if len(hits) == 0 {
			return nil, SearchDocumentsOutput{
				Results: []Citation{},
				Message: "No matching chunks found. The index may be empty; run ingestion first.",
			}, nil
		}

		return nil, SearchDocumentsOutput{
			Results: citations(hits, true),
			Context: prompt.Assemble(hits),
		}, nil
	}
}

// makeAskHandler creates the ask_documents tool handler.
// Each call is independent: no conversation history is kept between calls.
func makeAskHandler(backend Backend) func(
	context.Context, *mcp.CallToolRequest, AskDocumentsInput,
) (*mcp.CallToolResult, AskDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskDocumentsInput) (
		*mcp.CallToolResult, AskDocumentsOutput, error,
	) {
		ans, err := backend.AskOnce(ctx, input.Question)
		if err != nil {
			return nil, AskDocumentsOutput{}, fmt.Errorf("ask failed: %w", err)
		}

		return nil, AskDocumentsOutput{
			Answer:  ans.Text,
			Sources: citations(ans.Hits, false),
		}, nil
	}
}

// makeStatusHandler creates the get_index_status tool handler.
func makeStatusHandler(backend Backend) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		st, err := backend.Status(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("store_error: %w", err)
		}

		return nil, StatusOutput{
			Backend:     st.Backend,
			Location:    st.Location,
			Collection:  st.Collection,
			TotalChunks: st.Records,
		}, nil
	}
}

func citations(hits []storage.Hit, withText bool) []Citation {
	out := make([]Citation, len(hits))
	for i, h := range hits {
		out[i] = Citation{
			Rank:       i + 1,
			Source:     h.Metadata.SourceOrDefault(),
			ChunkIndex: h.Metadata.ChunkIndexOrDefault(),
			Distance:   h.Distance,
		}
		if withText {
			out[i].Text = h.Text
		}
	}
	return out
}
