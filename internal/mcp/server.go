package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mike-a-ellis/prepme-rag/internal/session"
	"github.com/mike-a-ellis/prepme-rag/internal/storage"
)

// Backend is what the tools need from a session. Search, AskOnce and Status leave
// conversation state alone, so concurrent tool calls are fine.
type Backend interface {
	Search(ctx context.Context, query string, k int) ([]storage.Hit, error)
	AskOnce(ctx context.Context, query string) (*session.Answer, error)
	Status(ctx context.Context) (*session.Status, error)
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server  *mcp.Server
	backend Backend
}

// Config holds server dependencies.
type Config struct {
	Backend Backend
	// DefaultTopK is used when a search does not ask for a specific count.
	DefaultTopK int
	Version     string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	impl := &mcp.Implementation{
		Name:    "prepme-rag",
		Version: version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Semantic search over the indexed study notes. Returns the closest chunks with their source, chunk index and distance (smaller is closer).",
	}, makeSearchHandler(cfg.Backend, cfg.DefaultTopK))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_documents",
		Description: "Answer a question using only the indexed study notes. Returns the answer and the chunks it was grounded on.",
	}, makeAskHandler(cfg.Backend))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Get the store backend, location, collection and number of indexed chunks.",
	}, makeStatusHandler(cfg.Backend))

	return &Server{
		server:  server,
		backend: cfg.Backend,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
